package bus

// Nomes padrão da topologia do bus. Nome de exchange e de fila são
// configuração, não protocolo: qualquer deployment só precisa manter os
// dois serviços apontando para os mesmos nomes.
const (
	// Exchange fanout durável onde o line-provider publica cada mutação.
	EventsExchange = "events"

	// Fila durável vinculada ao exchange, consumida pelo bet-maker.
	EventsQueue = "events"
)
