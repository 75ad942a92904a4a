// Package identitysync forwards user status snapshots to the external
// identity directory. Messages go to a durable RabbitMQ queue; with the
// broker disabled they are only logged.
package identitysync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/config"
	"github.com/spec-kit/jobcard-service/internal/domain"
)

// UserSnapshot is the message body sent to the directory.
type UserSnapshot struct {
	UserID          string            `json:"user_id"`
	ExternalSubject string            `json:"external_subject,omitempty"`
	Email           string            `json:"email"`
	FullName        string            `json:"full_name"`
	Status          domain.UserStatus `json:"status"`
	Roles           []string          `json:"roles,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	Event           string            `json:"event"`
	TraceID         string            `json:"trace_id,omitempty"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

// Publisher syncs user snapshots.
type Publisher interface {
	SyncUser(ctx context.Context, snapshot UserSnapshot) error
	Close() error
}

// New returns the AMQP publisher when the broker is enabled, else the logging stub.
func New(cfg config.BrokerConfig, logger *zap.Logger) Publisher {
	if !cfg.Enabled {
		return NewLogPublisher(logger)
	}
	return NewAMQPPublisher(cfg.URL, cfg.IdentitySyncQueue, logger)
}

type logPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher returns a publisher that only logs the would-be sync.
func NewLogPublisher(logger *zap.Logger) Publisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) SyncUser(_ context.Context, s UserSnapshot) error {
	p.logger.Info("identity sync skipped, broker disabled",
		zap.String("user_id", s.UserID),
		zap.String("status", string(s.Status)),
		zap.String("event", s.Event),
		zap.String("trace_id", s.TraceID))
	return nil
}

func (p *logPublisher) Close() error { return nil }

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connection interface {
	Channel() (*amqp.Channel, error)
	IsClosed() bool
	Close() error
}

// AMQPPublisher publishes snapshots as persistent JSON messages.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *zap.Logger

	mu   sync.Mutex
	conn connection
	// openChannel is replaced in tests.
	openChannel func() (channel, error)
}

// NewAMQPPublisher creates a publisher that dials lazily on first use.
func NewAMQPPublisher(url, queue string, logger *zap.Logger) *AMQPPublisher {
	p := &AMQPPublisher{url: url, queue: queue, logger: logger}
	p.openChannel = p.dialChannel
	return p
}

func (p *AMQPPublisher) dialChannel() (channel, error) {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("identitysync: dial broker: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("identitysync: open channel: %w", err)
	}
	return ch, nil
}

// SyncUser publishes s to the configured queue.
func (p *AMQPPublisher) SyncUser(ctx context.Context, s UserSnapshot) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("identitysync: marshal snapshot: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.openChannel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("identitysync: declare queue: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		CorrelationId: s.TraceID,
		Type:          s.Event,
		Body:          body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("identitysync: publish: %w", err)
	}

	p.logger.Debug("identity sync published",
		zap.String("user_id", s.UserID),
		zap.String("queue", p.queue),
		zap.String("event", s.Event))
	return nil
}

// Close closes the broker connection if one was opened.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}
