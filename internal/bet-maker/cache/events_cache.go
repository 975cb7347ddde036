package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linebet/line-bet-platform/pkg/contracts/events"
)

const activeKey = "events:active"

// EventsCache guarda no Redis o snapshot corrente de cada evento da
// réplica e a lista de eventos ativos servida pelo GET /events. Quem
// alimenta é o applier; a verdade continua no Postgres.
type EventsCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(c *redis.Client, ttl time.Duration) *EventsCache {
	return &EventsCache{Client: c, TTL: ttl}
}

// key gera a chave do snapshot corrente de um evento
func key(eventID string) string { return "events:current:" + eventID }

// SetCurrent armazena o snapshot do evento com TTL.
func (c *EventsCache) SetCurrent(ctx context.Context, e events.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key(e.EventID), b, c.TTL).Err()
}

// GetActive lê a lista de eventos ativos; (nil, false, nil) em cache miss.
func (c *EventsCache) GetActive(ctx context.Context) ([]events.Event, bool, error) {
	b, err := c.Client.Get(ctx, activeKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []events.Event
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// SetActive armazena a lista de eventos ativos com TTL.
func (c *EventsCache) SetActive(ctx context.Context, list []events.Event) error {
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, activeKey, b, c.TTL).Err()
}

// InvalidateActive derruba a lista cacheada; chamado a cada mutação
// aplicada, já que qualquer uma pode mudar o conjunto de ativos.
func (c *EventsCache) InvalidateActive(ctx context.Context) error {
	return c.Client.Del(ctx, activeKey).Err()
}
