package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/linebet/line-bet-platform/pkg/contracts/events"
)

// ErrEventNotFound indica identidade de evento ausente no armazenamento.
var ErrEventNotFound = errors.New("event not found")

// Migrations provisiona a tabela de eventos da autoridade. O registro de
// verdade dos eventos é durável: sobrevive a restart do serviço.
var Migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		event_id    TEXT PRIMARY KEY,
		coefficient NUMERIC(10,2) NOT NULL CHECK (coefficient > 0),
		deadline    TIMESTAMPTZ NOT NULL,
		state       TEXT NOT NULL,
		version     BIGINT NOT NULL DEFAULT 1,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_deadline ON events(deadline)`,
}

// Postgres implementa o armazenamento da autoridade de eventos.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de eventos.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Upsert insere ou substitui a linha corrente do evento pela chave
// event_id. Nunca produz linha duplicada pra mesma identidade.
func (p *Postgres) Upsert(ctx context.Context, e events.Event) error {
	const q = `
		INSERT INTO events (event_id, coefficient, deadline, state, version, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
		ON CONFLICT (event_id) DO UPDATE SET
		  coefficient = EXCLUDED.coefficient,
		  deadline    = EXCLUDED.deadline,
		  state       = EXCLUDED.state,
		  version     = EXCLUDED.version,
		  updated_at  = now()
	`
	_, err := p.db.ExecContext(ctx, q,
		e.EventID, e.Coefficient, e.Deadline.UTC(), string(e.State), e.Version,
	)
	return err
}

// Get retorna a linha corrente do evento ou ErrEventNotFound.
func (p *Postgres) Get(ctx context.Context, eventID string) (events.Event, error) {
	const q = `
		SELECT event_id, coefficient, deadline, state, version
		FROM events
		WHERE event_id = $1
	`
	var e events.Event
	err := p.db.QueryRowContext(ctx, q, eventID).Scan(
		&e.EventID, &e.Coefficient, &e.Deadline, &e.State, &e.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return events.Event{}, ErrEventNotFound
	}
	if err != nil {
		return events.Event{}, err
	}
	e.Deadline = e.Deadline.UTC()
	return e, nil
}

// ListActive retorna os eventos cujo deadline é estritamente posterior
// a now (ainda abertos pra aposta).
func (p *Postgres) ListActive(ctx context.Context, now time.Time) ([]events.Event, error) {
	const q = `
		SELECT event_id, coefficient, deadline, state, version
		FROM events
		WHERE deadline > $1
		ORDER BY event_id
	`
	rows, err := p.db.QueryContext(ctx, q, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		if err := rows.Scan(&e.EventID, &e.Coefficient, &e.Deadline, &e.State, &e.Version); err != nil {
			return nil, err
		}
		e.Deadline = e.Deadline.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
