package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/stripe-gateway/internal/domain"
	"github.com/utafrali/stripe-gateway/internal/gateway"
	apperrors "github.com/utafrali/stripe-gateway/pkg/errors"
	"github.com/utafrali/stripe-gateway/pkg/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Mock Adapter ---

type mockAdapter struct {
	mock.Mock
}

func (m *mockAdapter) transaction(name string, _ context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	args := m.MethodCalled(name, req)
	resp, _ := args.Get(0).(*domain.GatewayResponse)
	return resp, args.Error(1)
}

func (m *mockAdapter) Authorize(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return m.transaction("Authorize", ctx, req)
}

func (m *mockAdapter) AuthorizeWithToken(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return m.transaction("AuthorizeWithToken", ctx, req)
}

func (m *mockAdapter) Capture(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return m.transaction("Capture", ctx, req)
}

func (m *mockAdapter) Credit(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return m.transaction("Credit", ctx, req)
}

func (m *mockAdapter) Void(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return m.transaction("Void", ctx, req)
}

func (m *mockAdapter) AuthorizeAndCapture(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return m.transaction("AuthorizeAndCapture", ctx, req)
}

func (m *mockAdapter) AuthorizeAndCaptureWithToken(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return m.transaction("AuthorizeAndCaptureWithToken", ctx, req)
}

func (m *mockAdapter) CreateGiftCard(_ context.Context, req *gateway.GiftCardRequest) (*gateway.GiftCardResponse, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*gateway.GiftCardResponse)
	return resp, args.Error(1)
}

func (m *mockAdapter) GetBalance(_ context.Context, req *gateway.GiftCardRequest) (*gateway.GiftCardResponse, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*gateway.GiftCardResponse)
	return resp, args.Error(1)
}

func (m *mockAdapter) ValidateAuthTransaction(_ context.Context, in *domain.GatewayInteraction) (*gateway.ValidateResponse, error) {
	args := m.Called(in)
	resp, _ := args.Get(0).(*gateway.ValidateResponse)
	return resp, args.Error(1)
}

func (m *mockAdapter) GetAuthorizationIDKeyName(_ context.Context) (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

// --- Mock Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishTransactionProcessed(_ context.Context, operation string, req *domain.GatewayRequest, resp *domain.GatewayResponse) error {
	return m.Called(operation, req, resp).Error(0)
}

// --- Helpers ---

func setupRouter(adapter gateway.PaymentGatewayAdapter, srcErr error, events EventPublisher) http.Handler {
	source := func(gateway.AdapterContext) (gateway.PaymentGatewayAdapter, error) {
		if srcErr != nil {
			return nil, srcErr
		}
		return adapter, nil
	}
	h := NewGatewayHandler(source, events, testLogger())
	return NewRouter(h, health.NewHandler("stripe-gateway"), "stripe-gateway", testLogger())
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func transactionBody() map[string]any {
	return map[string]any{
		"adapter_context": map[string]any{
			"settings": []map[string]string{{"key": "secretKey", "value": "sk_test"}},
		},
		"request": map[string]any{
			"amount": "12.50",
			"context": map[string]any{
				"transaction": map[string]any{"id": "txn-1", "order_id": "order-1"},
			},
		},
	}
}

// --- Tests ---

func TestTransactionRoutes_Delegate(t *testing.T) {
	routes := map[string]string{
		"/api/v1/gateway/authorize":             "Authorize",
		"/api/v1/gateway/capture":               "Capture",
		"/api/v1/gateway/credit":                "Credit",
		"/api/v1/gateway/void":                  "Void",
		"/api/v1/gateway/authorize-and-capture": "AuthorizeAndCapture",
	}

	for path, method := range routes {
		t.Run(method, func(t *testing.T) {
			adapter := new(mockAdapter)
			want := &domain.GatewayResponse{ResponseText: method, TransactionID: "pi_123"}
			adapter.On(method, mock.MatchedBy(func(req *domain.GatewayRequest) bool {
				return req.TransactionID() == "txn-1" && req.Amount.Decimal.StringFixed(2) == "12.50"
			})).Return(want, nil).Once()

			rr := postJSON(t, setupRouter(adapter, nil, nil), path, transactionBody())
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			var got domain.GatewayResponse
			require.NoError(t, json.Unmarshal(decode(t, rr).Data, &got))
			assert.Equal(t, method, got.ResponseText)
			assert.Equal(t, "pi_123", got.TransactionID)
			adapter.AssertExpectations(t)
		})
	}
}

func TestTransactionRoutes_PublishEvent(t *testing.T) {
	adapter := new(mockAdapter)
	resp := &domain.GatewayResponse{TransactionID: "pi_1"}
	adapter.On("Authorize", mock.Anything).Return(resp, nil)

	events := new(mockPublisher)
	events.On("PublishTransactionProcessed", OperationAuthorize, mock.Anything, resp).Return(errors.New("broker down"))

	rr := postJSON(t, setupRouter(adapter, nil, events), "/api/v1/gateway/authorize", transactionBody())

	assert.Equal(t, http.StatusOK, rr.Code)
	events.AssertExpectations(t)
}

func TestTransactionRoutes_PublishFailureIsLogged(t *testing.T) {
	adapter := new(mockAdapter)
	resp := &domain.GatewayResponse{TransactionID: "pi_1"}
	adapter.On("Void", mock.Anything).Return(resp, nil)

	events := new(mockPublisher)
	events.On("PublishTransactionProcessed", OperationVoid, mock.Anything, resp).Return(errors.New("broker down"))

	var buf bytes.Buffer
	source := func(gateway.AdapterContext) (gateway.PaymentGatewayAdapter, error) { return adapter, nil }
	h := NewGatewayHandler(source, events, slog.New(slog.NewJSONHandler(&buf, nil)))
	router := NewRouter(h, health.NewHandler("stripe-gateway"), "stripe-gateway", testLogger())

	rr := postJSON(t, router, "/api/v1/gateway/void", transactionBody())

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, buf.String(), `"msg":"transaction event not published"`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"operation":"void"`)
	assert.Contains(t, buf.String(), "broker down")
}

func TestUnsupportedRoutes_NotImplemented(t *testing.T) {
	adapter := new(mockAdapter)
	adapter.On("AuthorizeWithToken", mock.Anything).Return(nil, apperrors.NotImplemented("AuthorizeWithToken"))
	adapter.On("AuthorizeAndCaptureWithToken", mock.Anything).Return(nil, apperrors.NotImplemented("AuthorizeAndCaptureWithToken"))
	adapter.On("CreateGiftCard", mock.Anything).Return(nil, apperrors.NotImplemented("CreateGiftCard"))
	adapter.On("GetBalance", mock.Anything).Return(nil, apperrors.NotImplemented("GetBalance"))
	router := setupRouter(adapter, nil, nil)

	for _, path := range []string{
		"/api/v1/gateway/authorize-with-token",
		"/api/v1/gateway/authorize-and-capture-with-token",
	} {
		rr := postJSON(t, router, path, transactionBody())
		assert.Equal(t, http.StatusNotImplemented, rr.Code, path)
		assert.Equal(t, "NOT_IMPLEMENTED", decode(t, rr).Error.Code)
	}

	giftCard := map[string]any{"request": map[string]any{"card_number": "6006491", "amount": "25"}}
	for _, path := range []string{"/api/v1/gateway/gift-cards", "/api/v1/gateway/gift-cards/balance"} {
		rr := postJSON(t, router, path, giftCard)
		assert.Equal(t, http.StatusNotImplemented, rr.Code, path)
	}
}

func TestAuthorizationIDKeyName(t *testing.T) {
	adapter := new(mockAdapter)
	adapter.On("GetAuthorizationIDKeyName").Return("", apperrors.NotImplemented("GetAuthorizationIDKeyName"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/gateway/authorization-id-key-name", nil)
	rr := httptest.NewRecorder()
	setupRouter(adapter, nil, nil).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}

func TestValidateRoute(t *testing.T) {
	adapter := new(mockAdapter)
	want := &gateway.ValidateResponse{IsValid: true, RemoteConnectionStatus: domain.ConnectionStatusSuccess, ResponseText: "OK"}
	adapter.On("ValidateAuthTransaction", mock.Anything).Return(want, nil)
	router := setupRouter(adapter, nil, nil)

	rr := postJSON(t, router, "/api/v1/gateway/validate", map[string]any{
		"interaction": map[string]any{"is_successful": false},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got gateway.ValidateResponse
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &got))
	assert.Equal(t, *want, got)

	rr = postJSON(t, router, "/api/v1/gateway/validate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTransactionRoutes_MissingCredentials(t *testing.T) {
	rr := postJSON(t, setupRouter(nil, gateway.ErrMissingCredentials, nil), "/api/v1/gateway/authorize", transactionBody())

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rr).Error.Code)
}

func TestTransactionRoutes_BadInput(t *testing.T) {
	adapter := new(mockAdapter)
	router := setupRouter(adapter, nil, nil)

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/gateway/authorize", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing request", func(t *testing.T) {
		rr := postJSON(t, router, "/api/v1/gateway/authorize", map[string]any{"adapter_context": map[string]any{}})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		env := decode(t, rr)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Contains(t, env.Error.Fields, "request")
	})

	t.Run("invalid card month", func(t *testing.T) {
		body := transactionBody()
		body["request"].(map[string]any)["card"] = map[string]any{"number": "4242424242424242", "expire_month": 13}
		rr := postJSON(t, router, "/api/v1/gateway/authorize", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/gateway/authorize", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "text/plain")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	})

	adapter.AssertNotCalled(t, "Authorize", mock.Anything)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	router := setupRouter(new(mockAdapter), nil, nil)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}
