package bus

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/vietTNT/DoveRx-backend/internal/observability"
)

// AMQP is the broker-backed Bus. Every server process declares its own
// exclusive queue on a shared topic exchange and binds it per group routing
// key, so a publish from any process reaches the subscribers of every process,
// including the publisher's own. Delivery is at-least-once best-effort.
type AMQP struct {
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	consCh   *amqp.Channel
	exchange string
	queue    string
	local    *Memory
	log      *zerolog.Logger

	pubMu sync.Mutex
	mu    sync.Mutex
	binds map[string]int
}

// NewAMQP connects to the broker and starts the delivery consumer.
func NewAMQP(url, exchange string, log *zerolog.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp publish channel: %w", err)
	}
	consCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp consume channel: %w", err)
	}

	if err := pubCh.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}

	// Server-named exclusive queue: dies with this process, so stale
	// bindings never outlive the connections they served.
	queue, err := consCh.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	deliveries, err := consCh.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp consume: %w", err)
	}

	b := &AMQP{
		conn:     conn,
		pubCh:    pubCh,
		consCh:   consCh,
		exchange: exchange,
		queue:    queue.Name,
		local:    NewMemory(log),
		log:      log,
		binds:    make(map[string]int),
	}

	go b.consume(deliveries)

	log.Info().Str("exchange", exchange).Str("queue", queue.Name).Msg("amqp bus connected")
	return b, nil
}

func (b *AMQP) consume(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		b.local.deliver(d.RoutingKey, d.Body)
	}
	b.log.Warn().Msg("amqp delivery stream closed")
}

// Subscribe joins the subscription locally and binds the process queue to the
// group the first time any local subscription joins it.
func (b *AMQP) Subscribe(group string, sub *Subscription) {
	if !b.local.subscribe(group, sub) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.binds[group]++
	if b.binds[group] > 1 {
		return
	}
	if err := b.consCh.QueueBind(b.queue, group, b.exchange, false, nil); err != nil {
		b.log.Error().Err(err).Str("group", group).Msg("amqp queue bind failed")
	}
}

// Unsubscribe removes the local membership and unbinds the queue once no
// local subscription is left in the group.
func (b *AMQP) Unsubscribe(group string, sub *Subscription) {
	if !b.local.unsubscribe(group, sub) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.binds[group] == 0 {
		return
	}
	b.binds[group]--
	if b.binds[group] > 0 {
		return
	}
	delete(b.binds, group)
	if err := b.consCh.QueueUnbind(b.queue, group, b.exchange, nil); err != nil {
		b.log.Error().Err(err).Str("group", group).Msg("amqp queue unbind failed")
	}
}

// Publish routes the payload through the exchange; it comes back through the
// consumer of every process whose queue is bound to the group.
func (b *AMQP) Publish(ctx context.Context, group string, payload []byte) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	err := b.pubCh.PublishWithContext(ctx, b.exchange, group, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Body:         payload,
	})
	if err != nil {
		observability.IncBusPublishError()
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Close shuts the channels and the connection down.
func (b *AMQP) Close() error {
	if b.pubCh != nil {
		_ = b.pubCh.Close()
	}
	if b.consCh != nil {
		_ = b.consCh.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
