// Package events publishes order lifecycle events to Kafka for downstream
// consumers (fulfilment, notifications). Publishing is best effort: a broker
// outage is logged, it never fails the business operation that produced the
// event.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
)

const Topic = "order-events"

type OrderEvent struct {
	Type        string             `json:"type"`
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	UserID      string             `json:"user_id"`
	Status      domain.OrderStatus `json:"status"`
	Items       []domain.OrderItem `json:"items"`
	Total       decimal.Decimal    `json:"total"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher builds a Kafka-backed publisher. With no brokers it returns a
// no-op publisher, which keeps local runs and unit tests broker-free.
func NewPublisher(brokers ...string) *Publisher {
	if len(brokers) == 0 {
		return &Publisher{}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w}
}

// OrderEvent publishes a lifecycle event for the given order, keyed by order
// ID so events for one order stay in partition order.
func (p *Publisher) OrderEvent(ctx context.Context, eventType string, order *domain.Order) {
	if p == nil || p.writer == nil {
		return
	}

	event := OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		Items:       order.Items,
		Total:       order.Total,
		OccurredAt:  time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal order event %s for order %s: %v", eventType, order.ID, err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(order.ID),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("failed to publish order event %s for order %s: %v", eventType, order.ID, err)
	}
}

func (p *Publisher) Close() {
	if p == nil || p.writer == nil {
		return
	}
	if err := p.writer.Close(); err != nil {
		log.Printf("error closing kafka writer: %v", err)
	}
}
