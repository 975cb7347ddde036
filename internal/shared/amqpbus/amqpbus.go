package amqpbus

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Parâmetros de retry da conexão inicial. O broker costuma subir junto
// com os serviços, então a primeira discagem pode falhar por alguns
// segundos sem que isso seja um erro.
const (
	dialAttempts   = 10
	dialBackoffMin = 500 * time.Millisecond
	dialBackoffMax = 10 * time.Second
)

// Bus encapsula a conexão AMQP e a topologia usada pelos dois serviços:
// um exchange fanout durável com uma fila durável vinculada. Toda mensagem
// publicada no exchange chega à fila; a fila tem um único consumidor lógico
// (o bet-maker).
type Bus struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
	log      *zap.Logger
}

// Connect disca o broker com retry e backoff progressivo e abre o channel.
// Substitui o sleep fixo de startup: quem chama só prossegue quando o
// broker está de pé de verdade.
func Connect(url, exchange, queue string, log *zap.Logger) (*Bus, error) {
	var conn *amqp.Connection
	var err error

	backoff := dialBackoffMin
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Warn("amqp dial failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", backoff),
			zap.Error(err),
		)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > dialBackoffMax {
			backoff = dialBackoffMax
		}
	}
	if err != nil {
		return nil, fmt.Errorf("dial amqp after %d attempts: %w", dialAttempts, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	return &Bus{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		queue:    queue,
		log:      log,
	}, nil
}

// DeclareTopology declara o exchange fanout, a fila durável e o binding.
// Idempotente: os dois serviços declaram no boot e o primeiro que subir
// provisiona pros dois.
func (b *Bus) DeclareTopology() error {
	if err := b.ch.ExchangeDeclare(
		b.exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %q: %w", b.exchange, err)
	}

	if _, err := b.ch.QueueDeclare(
		b.queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare queue %q: %w", b.queue, err)
	}

	if err := b.ch.QueueBind(b.queue, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %q to exchange %q: %w", b.queue, b.exchange, err)
	}

	b.log.Info("amqp topology declared",
		zap.String("exchange", b.exchange),
		zap.String("queue", b.queue),
	)
	return nil
}

// Publish envia o corpo pro exchange em modo persistente. A routing key é
// ignorada pelo fanout, mas carrega a identidade do evento para que um
// consumidor sensível a ordenação possa particionar por ela.
func (b *Bus) Publish(routingKey string, body []byte) error {
	err := b.ch.Publish(
		b.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to exchange %q: %w", b.exchange, err)
	}
	return nil
}

// Consume abre o stream de entregas da fila com ack manual e prefetch 1:
// uma mensagem em voo por vez, processada até o fim antes da próxima,
// preservando a ordem por evento com um único consumidor.
func (b *Bus) Consume() (<-chan amqp.Delivery, error) {
	if err := b.ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := b.ch.Consume(
		b.queue,
		"",    // consumer tag
		false, // auto-ack: o applier decide ack ou requeue
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume queue %q: %w", b.queue, err)
	}
	return deliveries, nil
}

// Healthy informa se a conexão com o broker continua aberta.
func (b *Bus) Healthy() error {
	if b.conn == nil || b.conn.IsClosed() {
		return fmt.Errorf("amqp connection closed")
	}
	return nil
}

// Close encerra channel e conexão.
func (b *Bus) Close() {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}
