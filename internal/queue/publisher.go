package queue

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends import events to RabbitMQ.  The connection is opened
// lazily and reused; a failed publish drops it so the next call redials.
type Publisher struct {
	URL string

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewPublisher(url string) *Publisher { return &Publisher{URL: url} }

// PublishImportCompleted publishes ev as a persistent message on the
// import.completed queue.
func (p *Publisher) PublishImportCompleted(ctx context.Context, ev ImportCompletedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.URL)
		if err != nil {
			return err
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		p.reset()
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(ImportCompletedQueue, true, false, false, false, nil); err != nil {
		p.reset()
		return err
	}
	err = ch.PublishWithContext(ctx, "", ImportCompletedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.reset()
	}
	return err
}

func (p *Publisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
