package consumer

import (
	"context"
	"errors"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Consumer puxa entregas da fila e decide o destino de cada uma:
//
//	aplicada  -> ack (sai da fila em definitivo)
//	veneno    -> ack e descarte (redeliver eterno seria pior que perder)
//	falha     -> nack com requeue (único mecanismo de retry; sem limite)
//
// Uma entrega por vez, processada até o fim antes da próxima (prefetch 1
// no canal), preservando a ordem por evento com um único consumidor.
type Consumer struct {
	Log        *zap.Logger
	Deliveries <-chan amqp.Delivery
	Applier    *Applier

	OnConsumed func()       // métricas (counter++)
	OnApplied  func()       // métricas
	OnDropped  func()       // métricas: mensagens veneno descartadas
	OnError    func(string) // métricas por fase
}

// Run consome até o contexto ser cancelado ou o canal de entregas fechar.
// Mensagens em voo no shutdown voltam pra fila e são reaplicadas no
// próximo boot — seguro, porque a aplicação é idempotente.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-c.Deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	if c.OnConsumed != nil {
		c.OnConsumed()
	}

	err := c.Applier.Apply(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.Log.Warn("ack failed", zap.Error(ackErr))
			if c.OnError != nil {
				c.OnError("ack")
			}
			return
		}
		if c.OnApplied != nil {
			c.OnApplied()
		}

	case errors.Is(err, ErrPoison):
		c.Log.Warn("dropping malformed message",
			zap.ByteString("body", d.Body),
			zap.Error(err),
		)
		if ackErr := d.Ack(false); ackErr != nil {
			c.Log.Warn("ack failed", zap.Error(ackErr))
		}
		if c.OnDropped != nil {
			c.OnDropped()
		}

	default:
		c.Log.Warn("apply failed, requeueing",
			zap.Uint64("delivery_tag", d.DeliveryTag),
			zap.Error(err),
		)
		if c.OnError != nil {
			c.OnError("apply")
		}
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.Log.Warn("nack failed", zap.Error(nackErr))
		}
	}
}
