package betting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/linebet/line-bet-platform/internal/bet-maker/repo"
)

var (
	// ErrEventNotFound indica aposta contra evento ausente da réplica.
	ErrEventNotFound = errors.New("event not found")

	// ErrEventClosed indica evento com deadline vencido (ou já encerrado):
	// aposta rejeitada pra qualquer valor.
	ErrEventClosed = errors.New("event closed for betting")

	// ErrInvalidAmount indica valor não positivo ou com mais de 2 casas.
	ErrInvalidAmount = errors.New("invalid bet amount")
)

// Store é a fatia do repositório que a aceitação de apostas usa. A
// validação leitura-e-escrita roda numa única unidade de trabalho pra
// leitores concorrentes nunca verem estado intermediário.
type Store interface {
	WithinTx(ctx context.Context, fn func(repo.Tx) error) error
	ListBets(ctx context.Context) ([]repo.Bet, error)
}

// Service valida e aceita apostas contra a réplica local de eventos.
// Nunca consulta a autoridade de forma síncrona: a réplica, mantida pelo
// consumidor de mensagens, é suficiente pra validar.
type Service struct {
	store Store
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// Accept valida e persiste uma aposta PENDING. Gates, na ordem: valor
// positivo com até 2 casas decimais; evento existente na réplica; deadline
// estritamente no futuro e evento ainda não encerrado.
func (s *Service) Accept(ctx context.Context, eventID string, amount decimal.Decimal) (repo.Bet, error) {
	if !amount.IsPositive() {
		return repo.Bet{}, fmt.Errorf("%w: must be positive, got %s", ErrInvalidAmount, amount)
	}
	if amount.Exponent() < -2 {
		return repo.Bet{}, fmt.Errorf("%w: at most 2 decimal places, got %s", ErrInvalidAmount, amount)
	}

	bet := repo.Bet{
		BetID:     uuid.NewString(),
		EventID:   eventID,
		Amount:    amount,
		Status:    repo.BetStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	err := s.store.WithinTx(ctx, func(tx repo.Tx) error {
		e, err := tx.GetEvent(ctx, eventID)
		if errors.Is(err, repo.ErrEventNotFound) {
			return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
		}
		if err != nil {
			return fmt.Errorf("get event %s: %w", eventID, err)
		}

		// deadline no passado ou evento já resolvido: fechado pra aposta
		if !e.Deadline.After(bet.CreatedAt) || e.State.Terminal() {
			return fmt.Errorf("%w: %s", ErrEventClosed, eventID)
		}

		return tx.InsertBet(ctx, bet)
	})
	if err != nil {
		return repo.Bet{}, err
	}

	s.log.Info("bet accepted",
		zap.String("bet_id", bet.BetID),
		zap.String("event_id", bet.EventID),
		zap.String("amount", bet.Amount.String()),
	)
	return bet, nil
}

// List retorna todas as apostas registradas.
func (s *Service) List(ctx context.Context) ([]repo.Bet, error) {
	return s.store.ListBets(ctx)
}
