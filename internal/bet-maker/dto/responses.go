package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlaceBetResponse struct {
	BetID     string          `json:"bet_id"`
	EventID   string          `json:"event_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"` // PENDING
	CreatedAt time.Time       `json:"created_at"`
	Message   string          `json:"message,omitempty"`
}
