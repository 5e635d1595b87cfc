package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/stripe-gateway/internal/domain"
	pkgkafka "github.com/utafrali/stripe-gateway/pkg/kafka"
	"github.com/utafrali/stripe-gateway/pkg/logger"
)

// EventTypeTransactionProcessed is emitted once per completed gateway flow.
const EventTypeTransactionProcessed = "gateway.transaction.processed"

// AggregateTypeTransaction is the aggregate type for transaction events.
const AggregateTypeTransaction = "transaction"

// SourceGateway identifies events produced by this service.
const SourceGateway = "stripe-gateway"

// TransactionProcessedData is the payload of a transaction.processed event.
// It never carries card data or client secrets.
type TransactionProcessedData struct {
	Operation              string                  `json:"operation"`
	TransactionID          string                  `json:"transaction_id"`
	OrderID                string                  `json:"order_id,omitempty"`
	Amount                 string                  `json:"amount,omitempty"`
	Currency               string                  `json:"currency,omitempty"`
	Sandbox                bool                    `json:"sandbox"`
	IsDeclined             bool                    `json:"is_declined"`
	RemoteConnectionStatus domain.ConnectionStatus `json:"remote_connection_status,omitempty"`
	ResponseCode           string                  `json:"response_code"`
	ResponseText           string                  `json:"response_text"`
	ProviderTransactionID  string                  `json:"provider_transaction_id,omitempty"`
	ResponseData           []domain.KeyValue       `json:"response_data,omitempty"`
}

// Publisher is the part of pkg/kafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes gateway transaction events to Kafka.
type Producer struct {
	kafka  Publisher
	topic  string
	logger *slog.Logger
}

// NewProducer creates an event producer writing to topic.
func NewProducer(kafka Publisher, topic string, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, topic: topic, logger: logger}
}

// PublishTransactionProcessed emits the outcome of one flow. Publishing is
// best effort: a failure is returned for the caller to log and never changes
// the response already computed for the host.
func (p *Producer) PublishTransactionProcessed(ctx context.Context, operation string, req *domain.GatewayRequest, resp *domain.GatewayResponse) error {
	if resp == nil {
		return nil
	}

	data := TransactionProcessedData{
		Operation:              operation,
		TransactionID:          req.TransactionID(),
		OrderID:                req.OrderID(),
		Currency:               req.CurrencyCode(),
		Sandbox:                req.IsSandbox(),
		IsDeclined:             resp.IsDeclined,
		RemoteConnectionStatus: resp.RemoteConnectionStatus,
		ResponseCode:           resp.ResponseCode,
		ResponseText:           resp.ResponseText,
		ProviderTransactionID:  resp.TransactionID,
		ResponseData:           publishable(resp.ResponseData),
	}
	if req != nil && req.Amount.Valid {
		data.Amount = req.Amount.Decimal.StringFixed(2)
	}

	event, err := pkgkafka.NewEvent(EventTypeTransactionProcessed, data.TransactionID, AggregateTypeTransaction, SourceGateway, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", EventTypeTransactionProcessed, err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx)).
		WithMetadata("operation", operation)

	if err := p.kafka.Publish(ctx, p.topic, event); err != nil {
		return fmt.Errorf("publish %s: %w", EventTypeTransactionProcessed, err)
	}
	p.logger.DebugContext(ctx, "transaction event published",
		slog.String("operation", operation),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// publishable drops result pairs that must not leave the process.
func publishable(pairs []domain.KeyValue) []domain.KeyValue {
	var out []domain.KeyValue
	for _, kv := range pairs {
		if kv.Key == domain.ResultKeyClientSecret {
			continue
		}
		out = append(out, kv)
	}
	return out
}
