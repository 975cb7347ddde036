package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Estados possíveis de um evento. NEW é o inicial; os FINISHED_* são
// terminais e mutuamente exclusivos.
type State string

const (
	StateNew          State = "NEW"
	StateFinishedWin  State = "FINISHED_WIN"
	StateFinishedLose State = "FINISHED_LOSE"
)

// Valid informa se o valor corresponde a um estado conhecido.
func (s State) Valid() bool {
	switch s {
	case StateNew, StateFinishedWin, StateFinishedLose:
		return true
	}
	return false
}

// Terminal informa se o estado encerra o ciclo de vida do evento.
func (s State) Terminal() bool {
	return s == StateFinishedWin || s == StateFinishedLose
}

// Ações publicadas pelo line-provider a cada mutação de evento.
type Action string

const (
	ActionCreate            Action = "create"
	ActionUpdateStatus      Action = "update_status"
	ActionUpdateCoefficient Action = "update_coefficient"
	ActionUpdateDeadline    Action = "update_deadline"
)

// Valid informa se o valor corresponde a uma ação conhecida.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdateStatus, ActionUpdateCoefficient, ActionUpdateDeadline:
		return true
	}
	return false
}

// Event é a entidade de eventos do line-provider, replicada no bet-maker.
// Version é monotônico por evento e atribuído somente pelo line-provider:
// 1 na criação, +1 a cada mutação.
type Event struct {
	EventID     string          `json:"event_id"`
	Coefficient decimal.Decimal `json:"coefficient"`
	Deadline    time.Time       `json:"deadline"`
	State       State           `json:"state"`
	Version     int64           `json:"version"`
}

// Validate garante coeficiente positivo com no máximo 2 casas decimais,
// estado conhecido e identidade não vazia.
func (e Event) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if !e.Coefficient.IsPositive() {
		return fmt.Errorf("coefficient must be positive, got %s", e.Coefficient)
	}
	if e.Coefficient.Exponent() < -2 {
		return fmt.Errorf("coefficient must have at most 2 decimal places, got %s", e.Coefficient)
	}
	if !e.State.Valid() {
		return fmt.Errorf("unknown state %q", e.State)
	}
	if e.Deadline.IsZero() {
		return fmt.Errorf("deadline is required")
	}
	return nil
}

// EventChange é a mensagem publicada no exchange a cada mutação.
// Carrega o snapshot completo do evento, nunca um delta de campo.
type EventChange struct {
	Action Action `json:"action"`
	Event
}

// Encode serializa a mensagem em JSON. O deadline é normalizado para UTC
// para que produtor e consumidor usem a mesma convenção de fuso.
func (m EventChange) Encode() ([]byte, error) {
	m.Deadline = m.Deadline.UTC()
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode event change: %w", err)
	}
	return b, nil
}

// Decode valida e desserializa o corpo de uma mensagem recebida do bus.
// Qualquer corpo que não decodifique aqui é tratado como veneno pelo
// consumidor (ack e descarte): uma mensagem malformada nunca fica válida.
func Decode(body []byte) (EventChange, error) {
	var m EventChange
	if err := json.Unmarshal(body, &m); err != nil {
		return EventChange{}, fmt.Errorf("decode event change: %w", err)
	}
	if !m.Action.Valid() {
		return EventChange{}, fmt.Errorf("decode event change: unknown action %q", m.Action)
	}
	if err := m.Event.Validate(); err != nil {
		return EventChange{}, fmt.Errorf("decode event change: %w", err)
	}
	if m.Version <= 0 {
		return EventChange{}, fmt.Errorf("decode event change: version must be positive, got %d", m.Version)
	}
	m.Deadline = m.Deadline.UTC()
	return m, nil
}
