package repo

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status possíveis de uma aposta. PENDING é o inicial; WON e LOSE só são
// atribuídos pela resolução do evento referenciado, nunca por outra via.
type BetStatus string

const (
	BetStatusPending BetStatus = "PENDING"
	BetStatusWon     BetStatus = "WON"
	BetStatusLose    BetStatus = "LOSE"
)

// Bet é a aposta persistida no Postgres do bet-maker.
type Bet struct {
	BetID     string          `json:"bet_id"`
	EventID   string          `json:"event_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    BetStatus       `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}
