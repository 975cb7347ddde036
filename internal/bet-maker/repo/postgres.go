package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/linebet/line-bet-platform/pkg/contracts/events"
)

// ErrEventNotFound indica identidade de evento ausente na réplica.
var ErrEventNotFound = errors.New("event not found")

// Migrations provisiona a réplica de eventos e o livro de apostas.
// bets.event_id referencia a réplica: aposta só existe contra evento
// conhecido localmente.
var Migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		event_id    TEXT PRIMARY KEY,
		coefficient NUMERIC(10,2) NOT NULL CHECK (coefficient > 0),
		deadline    TIMESTAMPTZ NOT NULL,
		state       TEXT NOT NULL,
		version     BIGINT NOT NULL DEFAULT 1,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS bets (
		bet_id     UUID PRIMARY KEY,
		event_id   TEXT NOT NULL REFERENCES events(event_id),
		amount     NUMERIC(10,2) NOT NULL CHECK (amount > 0),
		status     TEXT NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bets_event_status ON bets(event_id, status)`,
}

// Tx é a unidade de trabalho do bet-maker: toda mutação multi-passo
// (upsert de evento + resolução de apostas; leitura + insert na aceitação)
// roda dentro de uma Tx e comita ou desfaz junto.
type Tx interface {
	GetEvent(ctx context.Context, eventID string) (events.Event, error)
	UpsertEvent(ctx context.Context, e events.Event) error
	InsertBet(ctx context.Context, b Bet) error
	ResolveBetsForEvent(ctx context.Context, eventID string, state events.State) (int64, error)
}

// Postgres implementa a réplica de eventos e o livro de apostas.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// WithinTx executa fn dentro de uma transação com commit-ou-rollback
// garantido em qualquer saída. Se fn devolve erro, nada fica visível.
func (p *Postgres) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(sqlTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetEvent retorna o evento da réplica fora de transação (leituras do HTTP).
func (p *Postgres) GetEvent(ctx context.Context, eventID string) (events.Event, error) {
	return getEvent(ctx, p.db, eventID)
}

// ListActiveEvents retorna os eventos da réplica com deadline estritamente
// posterior a now.
func (p *Postgres) ListActiveEvents(ctx context.Context, now time.Time) ([]events.Event, error) {
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

// ListBets retorna todas as apostas (sem paginação).
func (p *Postgres) ListBets(ctx context.Context) ([]Bet, error) {
	const q = `
		SELECT bet_id, event_id, amount, status, created_at
		FROM bets
		ORDER BY created_at, bet_id
	`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		var b Bet
		if err := rows.Scan(&b.BetID, &b.EventID, &b.Amount, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.CreatedAt = b.CreatedAt.UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

// sqlTx adapta *sql.Tx pra interface Tx.
type sqlTx struct{ tx *sql.Tx }

func (s sqlTx) GetEvent(ctx context.Context, eventID string) (events.Event, error) {
	return getEvent(ctx, s.tx, eventID)
}

// UpsertEvent aplica o snapshot na réplica com guarda de versão:
// o UPDATE só acontece quando a versão recebida é mais nova que a
// armazenada, então reaplicar ou reordenar mensagens nunca regride campo.
func (s sqlTx) UpsertEvent(ctx context.Context, e events.Event) error {
	const q = `
		INSERT INTO events (event_id, coefficient, deadline, state, version, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
		ON CONFLICT (event_id) DO UPDATE SET
		  coefficient = EXCLUDED.coefficient,
		  deadline    = EXCLUDED.deadline,
		  state       = EXCLUDED.state,
		  version     = EXCLUDED.version,
		  updated_at  = now()
		WHERE events.version < EXCLUDED.version
	`
	_, err := s.tx.ExecContext(ctx, q,
		e.EventID, e.Coefficient, e.Deadline.UTC(), string(e.State), e.Version,
	)
	return err
}

func (s sqlTx) InsertBet(ctx context.Context, b Bet) error {
	const q = `
		INSERT INTO bets (bet_id, event_id, amount, status, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`
	_, err := s.tx.ExecContext(ctx, q, b.BetID, b.EventID, b.Amount, string(b.Status), b.CreatedAt.UTC())
	return err
}

// ResolveBetsForEvent transiciona em massa as apostas PENDING do evento
// pra WON ou LOSE conforme o estado terminal. Apostas já resolvidas não
// são tocadas, então reaplicar a mesma resolução é no-op.
func (s sqlTx) ResolveBetsForEvent(ctx context.Context, eventID string, state events.State) (int64, error) {
	var status BetStatus
	switch state {
	case events.StateFinishedWin:
		status = BetStatusWon
	case events.StateFinishedLose:
		status = BetStatusLose
	default:
		// estado não terminal não resolve nada
		return 0, nil
	}

	const q = `
		UPDATE bets SET status = $1
		WHERE event_id = $2 AND status = $3
	`
	res, err := s.tx.ExecContext(ctx, q, string(status), eventID, string(BetStatusPending))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// querier cobre *sql.DB e *sql.Tx pras leituras compartilhadas.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getEvent(ctx context.Context, q querier, eventID string) (events.Event, error) {
	const query = `
		SELECT event_id, coefficient, deadline, state, version
		FROM events
		WHERE event_id = $1
	`
	var e events.Event
	err := q.QueryRowContext(ctx, query, eventID).Scan(
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
