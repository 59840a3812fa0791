package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	exchangeName = "openlibrary.events"
	exchangeType = "topic"

	// Event types
	EventTypeBookCreated    = "catalog.book.created"
	EventTypeBookUpdated    = "catalog.book.updated"
	EventTypeBookDeleted    = "catalog.book.deleted"
	EventTypeBorrowCreated  = "lending.borrow.created"
	EventTypeBorrowReturned = "lending.borrow.returned"
)

// Publisher emits fire-and-forget domain notifications to RabbitMQ. No core
// operation depends on a publish landing; failures are logged and dropped.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
}

// Event represents a domain event
type Event struct {
	EventID      string                 `json:"event_id"`
	EventType    string                 `json:"event_type"`
	EventVersion string                 `json:"event_version"`
	Timestamp    string                 `json:"timestamp"`
	Payload      map[string]interface{} `json:"payload"`
}

// NewPublisher connects to RabbitMQ and declares the topic exchange
func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchangeName,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info("Connected to RabbitMQ", zap.String("exchange", exchangeName))

	return &Publisher{
		conn:    conn,
		channel: channel,
		log:     log,
	}, nil
}

// PublishBookCreated publishes a book created event
func (p *Publisher) PublishBookCreated(ctx context.Context, bookID uint, title, isbn string) error {
	return p.publish(ctx, EventTypeBookCreated, map[string]interface{}{
		"book_id": bookID,
		"title":   title,
		"isbn":    isbn,
	})
}

// PublishBookUpdated publishes a book updated event
func (p *Publisher) PublishBookUpdated(ctx context.Context, bookID uint) error {
	return p.publish(ctx, EventTypeBookUpdated, map[string]interface{}{
		"book_id": bookID,
	})
}

// PublishBookDeleted publishes a book deleted event
func (p *Publisher) PublishBookDeleted(ctx context.Context, bookID uint) error {
	return p.publish(ctx, EventTypeBookDeleted, map[string]interface{}{
		"book_id": bookID,
	})
}

// PublishBorrowCreated publishes a loan opened event
func (p *Publisher) PublishBorrowCreated(ctx context.Context, borrowID uint, borrowerID string) error {
	return p.publish(ctx, EventTypeBorrowCreated, map[string]interface{}{
		"borrow_id":   borrowID,
		"borrower_id": borrowerID,
	})
}

// PublishBorrowReturned publishes a loan closed event
func (p *Publisher) PublishBorrowReturned(ctx context.Context, borrowID uint) error {
	return p.publish(ctx, EventTypeBorrowReturned, map[string]interface{}{
		"borrow_id": borrowID,
	})
}

func (p *Publisher) publish(ctx context.Context, eventType string, payload map[string]interface{}) error {
	event := Event{
		EventID:      uuid.New().String(),
		EventType:    eventType,
		EventVersion: "1.0.0",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Payload:      payload,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		exchangeName,
		eventType, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.log.Warn("Failed to publish event", zap.String("event_type", eventType), zap.Error(err))
		return err
	}

	p.log.Debug("Event published", zap.String("event_type", eventType), zap.String("event_id", event.EventID))
	return nil
}

// Close closes the RabbitMQ connection
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
