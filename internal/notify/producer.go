package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hana270/PFE-PROJET/internal/domain"
	"github.com/segmentio/kafka-go"
)

const Topic = "shop-notifications"

const (
	EventVerificationCode = "payment.verification_code"
	EventPaymentConfirmed = "payment.confirmed"
	EventOrderCreated     = "order.created"
)

// Envelope wraps every published event.
type Envelope struct {
	EventID    string      `json:"event_id"`
	EventType  string      `json:"event_type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Producer publishes notification events to Kafka. Writes are
// synchronous so callers learn about delivery failures and can degrade.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers ...string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: w}
}

func (p *Producer) publish(ctx context.Context, key, eventType string, payload interface{}) error {
	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now(),
		Payload:    payload,
	}

	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(key), // recipient for ordering
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

func (p *Producer) VerificationCode(ctx context.Context, email, code string, expiresAt time.Time, amount float64, cardMasked string) error {
	return p.publish(ctx, email, EventVerificationCode, map[string]interface{}{
		"email":       email,
		"code":        code,
		"expires_at":  expiresAt,
		"amount":      amount,
		"card_masked": cardMasked,
	})
}

func (p *Producer) PaymentConfirmed(ctx context.Context, email, reference string, amount float64) error {
	return p.publish(ctx, email, EventPaymentConfirmed, map[string]interface{}{
		"email":     email,
		"reference": reference,
		"amount":    amount,
	})
}

func (p *Producer) OrderCreated(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, order.Reference, EventOrderCreated, map[string]interface{}{
		"reference":   order.Reference,
		"account_id":  order.AccountID,
		"email":       order.Email,
		"grand_total": order.GrandTotal,
		"created_at":  order.CreatedAt,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
