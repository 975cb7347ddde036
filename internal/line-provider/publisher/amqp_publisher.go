package publisher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/linebet/line-bet-platform/internal/shared/amqpbus"
	"github.com/linebet/line-bet-platform/pkg/contracts/events"
)

// AMQPPublisher serializa mutações de evento e publica no exchange fanout.
// Callbacks de métricas podem ser usadas para monitorar a propagação.
type AMQPPublisher struct {
	bus *amqpbus.Bus
	log *zap.Logger

	OnPublished func() // métricas (counter++)
	OnError     func() // métricas
}

func NewAMQPPublisher(bus *amqpbus.Bus, log *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{bus: bus, log: log}
}

// PublishEventChange monta a mensagem com o snapshot completo do evento e
// entrega pro bus. Só é chamado depois que a mutação foi gravada na
// autoridade: a réplica nunca pode estar à frente dela.
func (p *AMQPPublisher) PublishEventChange(ctx context.Context, e events.Event, action events.Action) error {
	msg := events.EventChange{Action: action, Event: e}
	body, err := msg.Encode()
	if err != nil {
		return err
	}

	// routing key = identidade do evento (ignorada pelo fanout, útil pra
	// particionar por evento em consumidores sensíveis a ordenação)
	if err := p.bus.Publish(e.EventID, body); err != nil {
		if p.OnError != nil {
			p.OnError()
		}
		return fmt.Errorf("publish event change: %w", err)
	}
	if p.OnPublished != nil {
		p.OnPublished()
	}

	p.log.Info("event change published",
		zap.String("event_id", e.EventID),
		zap.String("action", string(action)),
		zap.Int64("version", e.Version),
	)
	return nil
}
