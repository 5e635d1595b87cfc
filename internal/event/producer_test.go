package event

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/stripe-gateway/internal/domain"
	pkgkafka "github.com/utafrali/stripe-gateway/pkg/kafka"
	"github.com/utafrali/stripe-gateway/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testRequest() *domain.GatewayRequest {
	return &domain.GatewayRequest{
		Amount:  decimal.NewNullDecimal(decimal.RequireFromString("12.5")),
		Shopper: &domain.Shopper{CurrencyCode: "EUR"},
		Card:    &domain.Card{Number: "4242424242424242", CVV: "123"},
		Context: &domain.TransactionContext{
			IsSandbox:   true,
			Transaction: &domain.Transaction{ID: "txn-1", OrderID: "order-1"},
		},
	}
}

func TestPublishTransactionProcessed(t *testing.T) {
	pub := new(mockPublisher)
	var published *pkgkafka.Event
	pub.On("Publish", mock.Anything, "gateway.transactions", mock.AnythingOfType("*kafka.Event")).
		Run(func(args mock.Arguments) { published = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	p := NewProducer(pub, "gateway.transactions", testLogger())
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	resp := &domain.GatewayResponse{
		ResponseCode:           "200",
		ResponseText:           "Authorized via Stripe",
		RemoteConnectionStatus: domain.ConnectionStatusSuccess,
		TransactionID:          "ch_1",
		ResponseData:           []domain.KeyValue{{Key: domain.ResultKeyPaymentIntentID, Value: "pi_1"}},
	}

	require.NoError(t, p.PublishTransactionProcessed(ctx, "authorize", testRequest(), resp))
	pub.AssertExpectations(t)

	require.NotNil(t, published)
	assert.Equal(t, EventTypeTransactionProcessed, published.EventType)
	assert.Equal(t, "txn-1", published.AggregateID)
	assert.Equal(t, "corr-1", published.CorrelationID)
	assert.Equal(t, "authorize", published.Metadata["operation"])
	assert.NotContains(t, string(published.Data), "4242424242424242")

	var data TransactionProcessedData
	require.NoError(t, json.Unmarshal(published.Data, &data))
	assert.Equal(t, "12.50", data.Amount)
	assert.Equal(t, "EUR", data.Currency)
	assert.Equal(t, "order-1", data.OrderID)
	assert.True(t, data.Sandbox)
	assert.False(t, data.IsDeclined)
	assert.Equal(t, "ch_1", data.ProviderTransactionID)
	assert.Equal(t, resp.ResponseData, data.ResponseData)
}

func TestPublishTransactionProcessed_OmitsClientSecret(t *testing.T) {
	pub := new(mockPublisher)
	var published *pkgkafka.Event
	pub.On("Publish", mock.Anything, "t", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	p := NewProducer(pub, "t", testLogger())
	resp := &domain.GatewayResponse{
		ResponseCode:           "200",
		ResponseText:           "canceled via Stripe",
		RemoteConnectionStatus: domain.ConnectionStatusSuccess,
		TransactionID:          "pi_1",
		ResponseData: []domain.KeyValue{
			{Key: domain.ResultKeyPaymentIntentID, Value: "pi_1"},
			{Key: domain.ResultKeyClientSecret, Value: "pi_1_secret_abc"},
		},
	}

	require.NoError(t, p.PublishTransactionProcessed(context.Background(), "void", testRequest(), resp))
	require.NotNil(t, published)
	assert.NotContains(t, string(published.Data), "pi_1_secret_abc")
	assert.NotContains(t, string(published.Data), domain.ResultKeyClientSecret)

	var data TransactionProcessedData
	require.NoError(t, json.Unmarshal(published.Data, &data))
	assert.Equal(t, []domain.KeyValue{{Key: domain.ResultKeyPaymentIntentID, Value: "pi_1"}}, data.ResponseData)
	assert.Len(t, resp.ResponseData, 2)
}

func TestPublishTransactionProcessed_PublishFailure(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, "t", mock.Anything).Return(errors.New("broker down"))

	p := NewProducer(pub, "t", testLogger())
	err := p.PublishTransactionProcessed(context.Background(), "void", testRequest(), &domain.GatewayResponse{IsDeclined: true})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestPublishTransactionProcessed_NilResponseSkipped(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, "t", testLogger())

	assert.NoError(t, p.PublishTransactionProcessed(context.Background(), "credit", testRequest(), nil))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishTransactionProcessed_NilRequest(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, "t", mock.Anything).Return(nil)
	p := NewProducer(pub, "t", testLogger())

	assert.NotPanics(t, func() {
		_ = p.PublishTransactionProcessed(context.Background(), "capture", nil, &domain.GatewayResponse{IsDeclined: true})
	})
}
