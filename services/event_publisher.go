package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ticket-market/models"
)

// AMQPPublisher emits marketplace events to a topic exchange. Settlement
// events feed analytics and seller notifications; earning-failure events feed
// whatever operator tooling handles manual reconciliation.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	slog.Info("connected to RabbitMQ", "exchange", exchange)

	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type saleSettledEvent struct {
	TransactionID string    `json:"transaction_id"`
	TicketID      string    `json:"ticket_id"`
	BuyerID       string    `json:"buyer_id"`
	SellerID      string    `json:"seller_id"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	Method        string    `json:"method"`
	SettledAt     time.Time `json:"settled_at"`
}

func (p *AMQPPublisher) SaleSettled(ctx context.Context, tx *models.Transaction) {
	settledAt := time.Now().UTC()
	if tx.SettledAt != nil {
		settledAt = *tx.SettledAt
	}

	p.publish(ctx, fmt.Sprintf("sale.%s", tx.Status), saleSettledEvent{
		TransactionID: tx.ID,
		TicketID:      tx.TicketID,
		BuyerID:       tx.BuyerID,
		SellerID:      tx.SellerID,
		Amount:        tx.Amount,
		Status:        string(tx.Status),
		Method:        string(tx.PaymentMethod),
		SettledAt:     settledAt,
	})
}

type earningFailureEvent struct {
	TransactionID string  `json:"transaction_id"`
	SellerID      string  `json:"seller_id"`
	Amount        float64 `json:"amount"`
	Cause         string  `json:"cause"`
}

func (p *AMQPPublisher) EarningRecordingFailed(ctx context.Context, tx *models.Transaction, cause error) {
	p.publish(ctx, "earning.recording_failed", earningFailureEvent{
		TransactionID: tx.ID,
		SellerID:      tx.SellerID,
		Amount:        tx.Amount,
		Cause:         cause.Error(),
	})
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey string, event any) {
	body, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal event", "routing_key", routingKey, "error", err)
		return
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		// Events are observability, not ledger: a failed publish is logged
		// and dropped rather than failing the settlement.
		slog.Error("failed to publish event", "routing_key", routingKey, "error", err)
	}
}

// NoopPublisher satisfies EventPublisher when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) SaleSettled(context.Context, *models.Transaction) {}

func (NoopPublisher) EarningRecordingFailed(context.Context, *models.Transaction, error) {}
