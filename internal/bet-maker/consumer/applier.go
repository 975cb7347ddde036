package consumer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/linebet/line-bet-platform/internal/bet-maker/repo"
	"github.com/linebet/line-bet-platform/pkg/contracts/events"
)

// ErrPoison marca mensagem malformada: nunca vai ficar válida, então o
// consumidor dá ack e descarta em vez de redeliver pra sempre. É a única
// exceção deliberada ao "nunca descartar em silêncio" — e sai no log.
var ErrPoison = errors.New("poison message")

// Store é a fatia do repositório que o applier usa.
type Store interface {
	WithinTx(ctx context.Context, fn func(repo.Tx) error) error
}

// Cache recebe o snapshot aplicado; falha de cache não afeta o ack.
type Cache interface {
	SetCurrent(ctx context.Context, e events.Event) error
	InvalidateActive(ctx context.Context) error
}

// Applier decodifica mensagens de mutação de evento e aplica na réplica
// dentro de uma unidade de trabalho. Dispatch por ação:
//
//   - update_status: upsert do evento + resolução das apostas PENDING,
//     na mesma transação — ou os dois comitam ou nenhum.
//   - qualquer outra ação: só o upsert. A mensagem carrega o snapshot
//     completo, então create/update_coefficient/update_deadline são o
//     mesmo caminho de escrita.
type Applier struct {
	Log   *zap.Logger
	Store Store
	Cache Cache
}

// Apply processa o corpo de uma entrega. Retorna ErrPoison quando o corpo
// não decodifica (ack e descarta); qualquer outro erro significa falha de
// aplicação com rollback completo (nack e redelivery).
func (a *Applier) Apply(ctx context.Context, body []byte) error {
	msg, err := events.Decode(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPoison, err)
	}

	err = a.Store.WithinTx(ctx, func(tx repo.Tx) error {
		if err := tx.UpsertEvent(ctx, msg.Event); err != nil {
			return fmt.Errorf("upsert event %s: %w", msg.EventID, err)
		}

		if msg.Action == events.ActionUpdateStatus && msg.State.Terminal() {
			resolved, err := tx.ResolveBetsForEvent(ctx, msg.EventID, msg.State)
			if err != nil {
				return fmt.Errorf("resolve bets for event %s: %w", msg.EventID, err)
			}
			if resolved > 0 {
				a.Log.Info("bets resolved",
					zap.String("event_id", msg.EventID),
					zap.String("state", string(msg.State)),
					zap.Int64("bets", resolved),
				)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.refreshCache(ctx, msg.Event)

	a.Log.Info("event change applied",
		zap.String("event_id", msg.EventID),
		zap.String("action", string(msg.Action)),
		zap.Int64("version", msg.Version),
	)
	return nil
}

// refreshCache atualiza o snapshot do evento e invalida a lista de ativos.
// Best-effort: a verdade está no Postgres, o cache só acelera leitura.
func (a *Applier) refreshCache(ctx context.Context, e events.Event) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.SetCurrent(ctx, e); err != nil {
		a.Log.Warn("cache set failed", zap.String("event_id", e.EventID), zap.Error(err))
	}
	if err := a.Cache.InvalidateActive(ctx); err != nil {
		a.Log.Warn("cache invalidate failed", zap.Error(err))
	}
}
