package consumer

import (
	"context"
	"errors"
	"sync"

	"github.com/linebet/line-bet-platform/internal/bet-maker/repo"
	"github.com/linebet/line-bet-platform/pkg/contracts/events"
)

// memStore reproduz em memória a semântica do repositório Postgres:
// unidade de trabalho com commit-ou-rollback, upsert com guarda de versão
// e resolução que só toca apostas PENDING.
type memStore struct {
	mu     sync.Mutex
	events map[string]events.Event
	bets   map[string]repo.Bet

	failUpsert  error
	failResolve error
	failInsert  error
}

func newMemStore() *memStore {
	return &memStore{
		events: map[string]events.Event{},
		bets:   map[string]repo.Bet{},
	}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(repo.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:  s,
		events: cloneEvents(s.events),
		bets:   cloneBets(s.bets),
	}
	if err := fn(tx); err != nil {
		return err // rollback: cópias descartadas
	}
	s.events = tx.events
	s.bets = tx.bets
	return nil
}

func (s *memStore) ListBets(ctx context.Context) ([]repo.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repo.Bet, 0, len(s.bets))
	for _, b := range s.bets {
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) event(id string) (events.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	return e, ok
}

func (s *memStore) bet(id string) (repo.Bet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bets[id]
	return b, ok
}

type memTx struct {
	store  *memStore
	events map[string]events.Event
	bets   map[string]repo.Bet
}

func (t *memTx) GetEvent(ctx context.Context, eventID string) (events.Event, error) {
	e, ok := t.events[eventID]
	if !ok {
		return events.Event{}, repo.ErrEventNotFound
	}
	return e, nil
}

func (t *memTx) UpsertEvent(ctx context.Context, e events.Event) error {
	if t.store.failUpsert != nil {
		return t.store.failUpsert
	}
	cur, ok := t.events[e.EventID]
	if !ok || cur.Version < e.Version {
		t.events[e.EventID] = e
	}
	return nil
}

func (t *memTx) InsertBet(ctx context.Context, b repo.Bet) error {
	if t.store.failInsert != nil {
		return t.store.failInsert
	}
	if _, ok := t.bets[b.BetID]; ok {
		return errors.New("duplicate bet_id")
	}
	t.bets[b.BetID] = b
	return nil
}

func (t *memTx) ResolveBetsForEvent(ctx context.Context, eventID string, state events.State) (int64, error) {
	if t.store.failResolve != nil {
		return 0, t.store.failResolve
	}

	var status repo.BetStatus
	switch state {
	case events.StateFinishedWin:
		status = repo.BetStatusWon
	case events.StateFinishedLose:
		status = repo.BetStatusLose
	default:
		return 0, nil
	}

	var n int64
	for id, b := range t.bets {
		if b.EventID == eventID && b.Status == repo.BetStatusPending {
			b.Status = status
			t.bets[id] = b
			n++
		}
	}
	return n, nil
}

func cloneEvents(m map[string]events.Event) map[string]events.Event {
	out := make(map[string]events.Event, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBets(m map[string]repo.Bet) map[string]repo.Bet {
	out := make(map[string]repo.Bet, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
