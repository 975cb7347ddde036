package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/linebet/line-bet-platform/internal/line-provider/repo"
	"github.com/linebet/line-bet-platform/pkg/contracts/events"
)

var (
	// ErrEventExists indica tentativa de criar uma identidade já existente.
	ErrEventExists = errors.New("event already exists")

	// ErrEventFinished indica tentativa de transição a partir de um estado
	// terminal. FINISHED_WIN e FINISHED_LOSE encerram o evento.
	ErrEventFinished = errors.New("event already finished")

	// ErrValidation indica payload malformado (coeficiente, estado, deadline).
	ErrValidation = errors.New("validation failed")

	// ErrPublishFailed indica que a mutação foi gravada na autoridade mas a
	// propagação pro bus falhou. Nunca é engolido: o chamador precisa saber
	// que há estado pendente de reconciliação.
	ErrPublishFailed = errors.New("event stored but propagation failed")
)

// Store é o contrato de persistência da autoridade.
type Store interface {
	Upsert(ctx context.Context, e events.Event) error
	Get(ctx context.Context, eventID string) (events.Event, error)
	ListActive(ctx context.Context, now time.Time) ([]events.Event, error)
}

// Publisher propaga mutações já gravadas.
type Publisher interface {
	PublishEventChange(ctx context.Context, e events.Event, action events.Action) error
}

// Service orquestra as mutações da autoridade: valida, serializa por
// event_id, grava e só então publica. Version sobe a cada mutação, dentro
// do lock do evento, garantindo monotonicidade por identidade.
type Service struct {
	store Store
	pub   Publisher
	log   *zap.Logger

	locks sync.Map // event_id -> *sync.Mutex
}

func New(store Store, pub Publisher, log *zap.Logger) *Service {
	return &Service{store: store, pub: pub, log: log}
}

// lock serializa mutações concorrentes da mesma identidade. Sem isso, duas
// atualizações simultâneas poderiam publicar versões fora de ordem.
func (s *Service) lock(eventID string) func() {
	v, _ := s.locks.LoadOrStore(eventID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Create registra um evento novo e publica a ação "create".
func (s *Service) Create(ctx context.Context, e events.Event) (events.Event, error) {
	if err := e.Validate(); err != nil {
		return events.Event{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	unlock := s.lock(e.EventID)
	defer unlock()

	_, err := s.store.Get(ctx, e.EventID)
	if err == nil {
		return events.Event{}, fmt.Errorf("%w: %s", ErrEventExists, e.EventID)
	}
	if !errors.Is(err, repo.ErrEventNotFound) {
		return events.Event{}, fmt.Errorf("check event %s: %w", e.EventID, err)
	}

	e.Deadline = e.Deadline.UTC()
	e.Version = 1
	if err := s.store.Upsert(ctx, e); err != nil {
		return events.Event{}, fmt.Errorf("store event %s: %w", e.EventID, err)
	}

	return s.publishAfterCommit(ctx, e, events.ActionCreate)
}

// UpdateCoefficient muda o coeficiente e publica "update_coefficient".
func (s *Service) UpdateCoefficient(ctx context.Context, eventID string, coefficient decimal.Decimal) (events.Event, error) {
	return s.mutate(ctx, eventID, events.ActionUpdateCoefficient, func(e *events.Event) error {
		e.Coefficient = coefficient
		return nil
	})
}

// UpdateStatus muda o estado e publica "update_status". Transições a
// partir de um estado terminal são rejeitadas antes de qualquer gravação.
func (s *Service) UpdateStatus(ctx context.Context, eventID string, state events.State) (events.Event, error) {
	if !state.Valid() {
		return events.Event{}, fmt.Errorf("%w: unknown state %q", ErrValidation, state)
	}
	return s.mutate(ctx, eventID, events.ActionUpdateStatus, func(e *events.Event) error {
		if e.State.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrEventFinished, e.EventID, e.State)
		}
		e.State = state
		return nil
	})
}

// UpdateDeadline muda o deadline e publica "update_deadline".
func (s *Service) UpdateDeadline(ctx context.Context, eventID string, deadline time.Time) (events.Event, error) {
	if deadline.IsZero() {
		return events.Event{}, fmt.Errorf("%w: deadline is required", ErrValidation)
	}
	return s.mutate(ctx, eventID, events.ActionUpdateDeadline, func(e *events.Event) error {
		e.Deadline = deadline.UTC()
		return nil
	})
}

// Get retorna o evento corrente.
func (s *Service) Get(ctx context.Context, eventID string) (events.Event, error) {
	return s.store.Get(ctx, eventID)
}

// ListActive retorna os eventos ainda abertos pra aposta.
func (s *Service) ListActive(ctx context.Context) ([]events.Event, error) {
	return s.store.ListActive(ctx, time.Now())
}

// mutate aplica a mudança sob o lock do evento: lê, muta, valida, sobe a
// versão, regrava e publica. A publicação acontece somente depois da
// gravação; falha de publish é devolvida como ErrPublishFailed.
func (s *Service) mutate(ctx context.Context, eventID string, action events.Action, change func(*events.Event) error) (events.Event, error) {
	unlock := s.lock(eventID)
	defer unlock()

	e, err := s.store.Get(ctx, eventID)
	if err != nil {
		return events.Event{}, err
	}

	if err := change(&e); err != nil {
		return events.Event{}, err
	}
	if err := e.Validate(); err != nil {
		return events.Event{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	e.Version++
	if err := s.store.Upsert(ctx, e); err != nil {
		return events.Event{}, fmt.Errorf("store event %s: %w", eventID, err)
	}

	return s.publishAfterCommit(ctx, e, action)
}

func (s *Service) publishAfterCommit(ctx context.Context, e events.Event, action events.Action) (events.Event, error) {
	if err := s.pub.PublishEventChange(ctx, e, action); err != nil {
		s.log.Error("event stored but publish failed",
			zap.String("event_id", e.EventID),
			zap.String("action", string(action)),
			zap.Int64("version", e.Version),
			zap.Error(err),
		)
		return e, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return e, nil
}
