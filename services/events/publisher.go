package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"cmsledger/models"

	skafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	PaymentCompleted = "payment.completed"
	PaymentFailed    = "payment.failed"
	PaymentRefunded  = "payment.refunded"
)

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// LedgerEvent is published after a payment state change commits.
type LedgerEvent struct {
	Type          string               `json:"type"`
	OccurredAt    time.Time            `json:"occurredAt"`
	PaymentID     string               `json:"paymentId"`
	OrderID       string               `json:"orderId"`
	BookingID     string               `json:"bookingId"`
	UserID        string               `json:"userId"`
	Status        models.PaymentStatus `json:"status"`
	Amount        float64              `json:"amount"`
	Currency      string               `json:"currency"`
	InvoiceNumber string               `json:"invoiceNumber,omitempty"`
	TransactionID string               `json:"transactionId,omitempty"`
	RefundAmount  float64              `json:"refundAmount,omitempty"`
}

// NewLedgerEvent snapshots payment into an event of the given type.
func NewLedgerEvent(eventType string, payment *models.Payment) LedgerEvent {
	return LedgerEvent{
		Type:         eventType,
		OccurredAt:   time.Now().UTC(),
		PaymentID:    payment.ID,
		OrderID:      payment.OrderID,
		BookingID:    payment.BookingID,
		UserID:       payment.UserID,
		Status:       payment.Status,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
		RefundAmount: payment.RefundAmount,
	}
}

// KafkaPublisher writes ledger events keyed by payment id, so one payment's events stay ordered.
type KafkaPublisher struct {
	writer Writer
	logger *zap.Logger
}

// NewKafkaPublisher writes to topic on a comma separated broker list.
func NewKafkaPublisher(brokers, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &skafka.Writer{
		Addr:         skafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		RequiredAcks: skafka.RequireAll,
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event LedgerEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := skafka.Message{
		Key:     []byte(event.PaymentID),
		Value:   b,
		Headers: []skafka.Header{{Key: "type", Value: []byte(event.Type)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("kafka write error", zap.String("type", event.Type), zap.String("paymentId", event.PaymentID), zap.Error(err))
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events; used when KAFKA_BROKERS is unset.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, LedgerEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
