package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/utafrali/stripe-gateway/internal/domain"
	"github.com/utafrali/stripe-gateway/internal/gateway"
	apperrors "github.com/utafrali/stripe-gateway/pkg/errors"
	"github.com/utafrali/stripe-gateway/pkg/httputil"
	"github.com/utafrali/stripe-gateway/pkg/logger"
	"github.com/utafrali/stripe-gateway/pkg/validator"
)

// AdapterSource builds an adapter for one host context.
type AdapterSource func(actx gateway.AdapterContext) (gateway.PaymentGatewayAdapter, error)

// EventPublisher records completed flows. A nil publisher disables events.
type EventPublisher interface {
	PublishTransactionProcessed(ctx context.Context, operation string, req *domain.GatewayRequest, resp *domain.GatewayResponse) error
}

// Operation names used in logs and events.
const (
	OperationAuthorize                    = "authorize"
	OperationAuthorizeWithToken           = "authorize_with_token"
	OperationCapture                      = "capture"
	OperationCredit                       = "credit"
	OperationVoid                         = "void"
	OperationAuthorizeAndCapture          = "authorize_and_capture"
	OperationAuthorizeAndCaptureWithToken = "authorize_and_capture_with_token"
)

// --- Request envelopes ---

// TransactionEnvelope is the body of every transaction route.
type TransactionEnvelope struct {
	AdapterContext gateway.AdapterContext `json:"adapter_context"`
	Request        *domain.GatewayRequest `json:"request" validate:"required"`
}

// GiftCardEnvelope is the body of the gift card routes.
type GiftCardEnvelope struct {
	AdapterContext gateway.AdapterContext   `json:"adapter_context"`
	Request        *gateway.GiftCardRequest `json:"request" validate:"required"`
}

// ValidateEnvelope is the body of the validate route.
type ValidateEnvelope struct {
	AdapterContext gateway.AdapterContext     `json:"adapter_context"`
	Interaction    *domain.GatewayInteraction `json:"interaction" validate:"required"`
}

// AuthorizationKeyNameResponse is the body of the authorization key route.
type AuthorizationKeyNameResponse struct {
	KeyName string `json:"key_name"`
}

// GatewayHandler exposes the adapter operations over HTTP.
type GatewayHandler struct {
	adapters AdapterSource
	events   EventPublisher
	logger   *slog.Logger
}

// NewGatewayHandler creates a gateway HTTP handler. events may be nil.
func NewGatewayHandler(adapters AdapterSource, events EventPublisher, logger *slog.Logger) *GatewayHandler {
	return &GatewayHandler{adapters: adapters, events: events, logger: logger}
}

type transactionCall func(gateway.PaymentGatewayAdapter, context.Context, *domain.GatewayRequest) (*domain.GatewayResponse, error)

// Authorize handles POST /api/v1/gateway/authorize.
func (h *GatewayHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	h.transaction(w, r, OperationAuthorize, gateway.PaymentGatewayAdapter.Authorize)
}

// AuthorizeWithToken handles POST /api/v1/gateway/authorize-with-token.
func (h *GatewayHandler) AuthorizeWithToken(w http.ResponseWriter, r *http.Request) {
	h.transaction(w, r, OperationAuthorizeWithToken, gateway.PaymentGatewayAdapter.AuthorizeWithToken)
}

// Capture handles POST /api/v1/gateway/capture.
func (h *GatewayHandler) Capture(w http.ResponseWriter, r *http.Request) {
	h.transaction(w, r, OperationCapture, gateway.PaymentGatewayAdapter.Capture)
}

// Credit handles POST /api/v1/gateway/credit.
func (h *GatewayHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.transaction(w, r, OperationCredit, gateway.PaymentGatewayAdapter.Credit)
}

// Void handles POST /api/v1/gateway/void.
func (h *GatewayHandler) Void(w http.ResponseWriter, r *http.Request) {
	h.transaction(w, r, OperationVoid, gateway.PaymentGatewayAdapter.Void)
}

// AuthorizeAndCapture handles POST /api/v1/gateway/authorize-and-capture.
func (h *GatewayHandler) AuthorizeAndCapture(w http.ResponseWriter, r *http.Request) {
	h.transaction(w, r, OperationAuthorizeAndCapture, gateway.PaymentGatewayAdapter.AuthorizeAndCapture)
}

// AuthorizeAndCaptureWithToken handles POST /api/v1/gateway/authorize-and-capture-with-token.
func (h *GatewayHandler) AuthorizeAndCaptureWithToken(w http.ResponseWriter, r *http.Request) {
	h.transaction(w, r, OperationAuthorizeAndCaptureWithToken, gateway.PaymentGatewayAdapter.AuthorizeAndCaptureWithToken)
}

func (h *GatewayHandler) transaction(w http.ResponseWriter, r *http.Request, operation string, call transactionCall) {
	var env TransactionEnvelope
	if err := validator.DecodeAndValidate(w, r, &env); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	ctx := r.Context()
	if id := env.Request.TransactionID(); id != "" {
		ctx = logger.WithTransactionID(ctx, id)
		ctx = logger.NewContext(ctx, logger.WithContext(ctx, h.logger))
		r = r.WithContext(ctx)
	}

	adapter, ok := h.adapter(w, r, env.AdapterContext)
	if !ok {
		return
	}

	resp, err := call(adapter, ctx, env.Request)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if h.events != nil {
		if err := h.events.PublishTransactionProcessed(ctx, operation, env.Request, resp); err != nil {
			logger.WithContext(ctx, h.logger).WarnContext(ctx, "transaction event not published",
				slog.String("operation", operation),
				slog.String("error", err.Error()),
			)
		}
	}

	httputil.WriteData(w, resp)
}

// CreateGiftCard handles POST /api/v1/gateway/gift-cards.
func (h *GatewayHandler) CreateGiftCard(w http.ResponseWriter, r *http.Request) {
	h.giftCard(w, r, gateway.PaymentGatewayAdapter.CreateGiftCard)
}

// GetBalance handles POST /api/v1/gateway/gift-cards/balance.
func (h *GatewayHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	h.giftCard(w, r, gateway.PaymentGatewayAdapter.GetBalance)
}

func (h *GatewayHandler) giftCard(w http.ResponseWriter, r *http.Request,
	call func(gateway.PaymentGatewayAdapter, context.Context, *gateway.GiftCardRequest) (*gateway.GiftCardResponse, error),
) {
	var env GiftCardEnvelope
	if err := validator.DecodeAndValidate(w, r, &env); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	adapter, ok := h.adapter(w, r, env.AdapterContext)
	if !ok {
		return
	}

	resp, err := call(adapter, r.Context(), env.Request)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, resp)
}

// ValidateAuthTransaction handles POST /api/v1/gateway/validate.
func (h *GatewayHandler) ValidateAuthTransaction(w http.ResponseWriter, r *http.Request) {
	var env ValidateEnvelope
	if err := validator.DecodeAndValidate(w, r, &env); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	adapter, ok := h.adapter(w, r, env.AdapterContext)
	if !ok {
		return
	}

	resp, err := adapter.ValidateAuthTransaction(r.Context(), env.Interaction)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, resp)
}

// GetAuthorizationIDKeyName handles GET /api/v1/gateway/authorization-id-key-name.
// The route carries no body, so the adapter is built from process-level
// credentials only.
func (h *GatewayHandler) GetAuthorizationIDKeyName(w http.ResponseWriter, r *http.Request) {
	adapter, ok := h.adapter(w, r, gateway.AdapterContext{})
	if !ok {
		return
	}

	name, err := adapter.GetAuthorizationIDKeyName(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, AuthorizationKeyNameResponse{KeyName: name})
}

func (h *GatewayHandler) adapter(w http.ResponseWriter, r *http.Request, actx gateway.AdapterContext) (gateway.PaymentGatewayAdapter, bool) {
	adapter, err := h.adapters(actx)
	if err != nil {
		if errors.Is(err, gateway.ErrMissingCredentials) {
			err = apperrors.Unauthorized("no provider secret key configured")
		}
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}
	return adapter, true
}
