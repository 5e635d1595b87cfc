package gateway

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/stripe-gateway/internal/domain"
	apperrors "github.com/utafrali/stripe-gateway/pkg/errors"
)

// ErrNotImplemented is returned by operations this gateway does not support.
var ErrNotImplemented = apperrors.ErrNotImplemented

// PaymentGatewayAdapter is the operation set the host runtime calls on a
// gateway. Transaction failures are reported inside the response; the error
// return is reserved for operations the gateway does not support.
type PaymentGatewayAdapter interface {
	Authorize(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error)
	AuthorizeWithToken(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error)
	Capture(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error)
	Credit(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error)
	Void(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error)
	AuthorizeAndCapture(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error)
	AuthorizeAndCaptureWithToken(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error)
	CreateGiftCard(ctx context.Context, req *GiftCardRequest) (*GiftCardResponse, error)
	GetBalance(ctx context.Context, req *GiftCardRequest) (*GiftCardResponse, error)
	ValidateAuthTransaction(ctx context.Context, in *domain.GatewayInteraction) (*ValidateResponse, error)
	GetAuthorizationIDKeyName(ctx context.Context) (string, error)
}

// Processor runs the transaction flows. *service.Engine satisfies it.
type Processor interface {
	Authorize(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse
	Capture(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse
	AuthorizeAndCapture(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse
	Void(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse
	Credit(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse
}

// GiftCardRequest is the host's gift card create or balance request.
type GiftCardRequest struct {
	CardNumber    string              `json:"card_number,omitempty"`
	Amount        decimal.NullDecimal `json:"amount"`
	CurrencyCode  string              `json:"currency_code,omitempty"`
	TransactionID string              `json:"transaction_id,omitempty"`
}

// GiftCardResponse is the host's gift card result.
type GiftCardResponse struct {
	IsDeclined   bool                `json:"is_declined"`
	ResponseText string              `json:"response_text,omitempty"`
	Balance      decimal.NullDecimal `json:"balance"`
}

// ValidateResponse acknowledges a previously recorded interaction.
type ValidateResponse struct {
	IsValid                bool                    `json:"is_valid"`
	IsDeclined             bool                    `json:"is_declined"`
	RemoteConnectionStatus domain.ConnectionStatus `json:"remote_connection_status"`
	ResponseText           string                  `json:"response_text"`
}

var _ PaymentGatewayAdapter = (*Adapter)(nil)

// Adapter delegates host operations to a Processor.
type Adapter struct {
	settings  AdapterContext
	processor Processor
	logger    *slog.Logger
}

// NewAdapter creates an adapter bound to one host context.
func NewAdapter(actx AdapterContext, processor Processor, logger *slog.Logger) *Adapter {
	return &Adapter{settings: actx, processor: processor, logger: logger}
}

// Context returns the host context the adapter was created for.
func (a *Adapter) Context() AdapterContext {
	return a.settings
}

func (a *Adapter) Authorize(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return a.processor.Authorize(ctx, req), nil
}

func (a *Adapter) AuthorizeWithToken(ctx context.Context, _ *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return nil, a.unsupported(ctx, "AuthorizeWithToken")
}

func (a *Adapter) Capture(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return a.processor.Capture(ctx, req), nil
}

func (a *Adapter) Credit(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return a.processor.Credit(ctx, req), nil
}

func (a *Adapter) Void(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return a.processor.Void(ctx, req), nil
}

func (a *Adapter) AuthorizeAndCapture(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return a.processor.AuthorizeAndCapture(ctx, req), nil
}

func (a *Adapter) AuthorizeAndCaptureWithToken(ctx context.Context, _ *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	return nil, a.unsupported(ctx, "AuthorizeAndCaptureWithToken")
}

func (a *Adapter) CreateGiftCard(ctx context.Context, _ *GiftCardRequest) (*GiftCardResponse, error) {
	return nil, a.unsupported(ctx, "CreateGiftCard")
}

func (a *Adapter) GetBalance(ctx context.Context, _ *GiftCardRequest) (*GiftCardResponse, error) {
	return nil, a.unsupported(ctx, "GetBalance")
}

// ValidateAuthTransaction always reports the interaction as valid; no
// provider call is made.
func (a *Adapter) ValidateAuthTransaction(_ context.Context, _ *domain.GatewayInteraction) (*ValidateResponse, error) {
	return &ValidateResponse{
		IsValid:                true,
		IsDeclined:             false,
		RemoteConnectionStatus: domain.ConnectionStatusSuccess,
		ResponseText:           "OK",
	}, nil
}

func (a *Adapter) GetAuthorizationIDKeyName(ctx context.Context) (string, error) {
	return "", a.unsupported(ctx, "GetAuthorizationIDKeyName")
}

func (a *Adapter) unsupported(ctx context.Context, operation string) error {
	a.logger.InfoContext(ctx, "unsupported gateway operation", slog.String("operation", operation))
	return apperrors.NotImplemented(operation)
}
