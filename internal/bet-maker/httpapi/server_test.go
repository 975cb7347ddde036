package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/linebet/line-bet-platform/internal/bet-maker/betting"
	"github.com/linebet/line-bet-platform/internal/bet-maker/dto"
	"github.com/linebet/line-bet-platform/internal/bet-maker/repo"
	"github.com/linebet/line-bet-platform/pkg/contracts/events"
)

type memStore struct {
	events map[string]events.Event
	bets   []repo.Bet
}

func (s *memStore) WithinTx(ctx context.Context, fn func(repo.Tx) error) error {
	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	s.bets = append(s.bets, tx.inserted...)
	return nil
}

func (s *memStore) ListBets(ctx context.Context) ([]repo.Bet, error) {
	return append([]repo.Bet(nil), s.bets...), nil
}

type memTx struct {
	store    *memStore
	inserted []repo.Bet
}

func (t *memTx) GetEvent(ctx context.Context, eventID string) (events.Event, error) {
	e, ok := t.store.events[eventID]
	if !ok {
		return events.Event{}, repo.ErrEventNotFound
	}
	return e, nil
}

func (t *memTx) UpsertEvent(ctx context.Context, e events.Event) error { return nil }

func (t *memTx) InsertBet(ctx context.Context, b repo.Bet) error {
	t.inserted = append(t.inserted, b)
	return nil
}

func (t *memTx) ResolveBetsForEvent(ctx context.Context, eventID string, state events.State) (int64, error) {
	return 0, nil
}

func newTestServer(evs ...events.Event) (http.Handler, *memStore) {
	store := &memStore{events: map[string]events.Event{}}
	for _, e := range evs {
		store.events[e.EventID] = e
	}
	bets := betting.New(store, zap.NewNop())
	srv := NewServer(zap.NewNop(), nil, bets, nil)
	return srv.Router(), store
}

func openEvent(id string) events.Event {
	return events.Event{
		EventID:     id,
		Coefficient: decimal.RequireFromString("1.50"),
		Deadline:    time.Now().Add(time.Hour).UTC(),
		State:       events.StateNew,
		Version:     1,
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPlaceBetAccepted(t *testing.T) {
	h, store := newTestServer(openEvent("E1"))

	rec := do(t, h, http.MethodPost, "/bets", `{"event_id":"E1","amount":"10.00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body)
	}

	var resp dto.PlaceBetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.EventID != "E1" || resp.Status != string(repo.BetStatusPending) {
		t.Errorf("response = %+v", resp)
	}
	if resp.BetID == "" {
		t.Error("bet_id missing from response")
	}
	if len(store.bets) != 1 {
		t.Errorf("stored bets = %d, want 1", len(store.bets))
	}
}

func TestPlaceBetUnknownEventReturns404(t *testing.T) {
	h, _ := newTestServer()

	rec := do(t, h, http.MethodPost, "/bets", `{"event_id":"nope","amount":"10.00"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPlaceBetClosedEventReturns400(t *testing.T) {
	closed := openEvent("E1")
	closed.Deadline = time.Now().Add(-time.Minute).UTC()
	h, _ := newTestServer(closed)

	rec := do(t, h, http.MethodPost, "/bets", `{"event_id":"E1","amount":"10.00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPlaceBetInvalidAmountReturns400(t *testing.T) {
	h, _ := newTestServer(openEvent("E1"))

	for _, amount := range []string{`"0"`, `"-5.00"`, `"10.001"`} {
		rec := do(t, h, http.MethodPost, "/bets", `{"event_id":"E1","amount":`+amount+`}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("amount %s: status = %d, want 400", amount, rec.Code)
		}
	}
}

func TestPlaceBetMissingEventIDReturns400(t *testing.T) {
	h, _ := newTestServer()

	rec := do(t, h, http.MethodPost, "/bets", `{"amount":"10.00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPlaceBetBadJSONReturns400(t *testing.T) {
	h, _ := newTestServer()

	rec := do(t, h, http.MethodPost, "/bets", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListBets(t *testing.T) {
	h, _ := newTestServer(openEvent("E1"))

	rec := do(t, h, http.MethodGet, "/bets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}

	do(t, h, http.MethodPost, "/bets", `{"event_id":"E1","amount":"10.00"}`)
	rec = do(t, h, http.MethodGet, "/bets", "")
	var bets []repo.Bet
	if err := json.Unmarshal(rec.Body.Bytes(), &bets); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(bets) != 1 || bets[0].EventID != "E1" {
		t.Errorf("bets = %+v", bets)
	}
}

func TestBetsMethodNotAllowed(t *testing.T) {
	h, _ := newTestServer()

	rec := do(t, h, http.MethodDelete, "/bets", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
