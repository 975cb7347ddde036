package dto

import "github.com/shopspring/decimal"

type PlaceBetRequest struct {
	EventID string          `json:"event_id"`
	Amount  decimal.Decimal `json:"amount"` // positivo, até 2 casas decimais
}
