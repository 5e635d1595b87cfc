package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	stripego "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentintent"
	"github.com/stripe/stripe-go/v72/paymentmethod"
	"github.com/stripe/stripe-go/v72/refund"

	"github.com/utafrali/stripe-gateway/internal/provider"
	"github.com/utafrali/stripe-gateway/pkg/httpclient"
)

const (
	// DefaultBaseURL is the public Stripe API host.
	DefaultBaseURL = "https://api.stripe.com"

	// APIVersion is the version pinned by the SDK; payment intents embed
	// their charges.
	APIVersion = stripego.APIVersion
)

var _ provider.Provider = (*Client)(nil)

// Client implements provider.Provider on the Stripe SDK. Requests leave
// through the given Doer, so the breaker sees every call.
type Client struct {
	baseURL string
	methods paymentmethod.Client
	intents paymentintent.Client
	refunds refund.Client
	logger  *slog.Logger
}

// NewClient creates a Stripe client that sends requests through doer.
func NewClient(doer httpclient.Doer, baseURL, secretKey string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		HTTPClient:        httpclient.NewHTTPClient(doer),
		URL:               stripego.String(baseURL),
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &leveledLogger{logger: logger},
		EnableTelemetry:   stripego.Bool(false),
	})

	return &Client{
		baseURL: baseURL,
		methods: paymentmethod.Client{B: backend, Key: secretKey},
		intents: paymentintent.Client{B: backend, Key: secretKey},
		refunds: refund.Client{B: backend, Key: secretKey},
		logger:  logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "stripe"
}

// CreatePaymentMethod stores a card and its billing details.
func (c *Client) CreatePaymentMethod(ctx context.Context, input *provider.PaymentMethodInput) (*provider.PaymentMethod, error) {
	b := input.Billing
	params := &stripego.PaymentMethodParams{
		Type: stripego.String(string(stripego.PaymentMethodTypeCard)),
		Card: &stripego.PaymentMethodCardParams{
			Number:   stripego.String(input.CardNumber),
			ExpMonth: stripego.String(strconv.Itoa(input.ExpMonth)),
			ExpYear:  stripego.String(strconv.Itoa(input.ExpYear)),
			CVC:      optional(input.CVC),
		},
		BillingDetails: &stripego.BillingDetailsParams{
			Name:  optional(b.Name),
			Email: optional(b.Email),
			Phone: optional(b.Phone),
			Address: &stripego.AddressParams{
				Line1:      optional(b.Line1),
				Line2:      optional(b.Line2),
				City:       optional(b.City),
				State:      optional(b.State),
				PostalCode: optional(b.PostalCode),
				Country:    optional(b.Country),
			},
		},
	}
	withRequest(ctx, &params.Params, input.IdempotencyKey)

	pm, err := c.methods.New(params)
	if err != nil {
		return nil, c.toProviderError(ctx, "create_payment_method", err)
	}
	return &provider.PaymentMethod{ID: pm.ID, Type: string(pm.Type)}, nil
}

// CreatePaymentIntent creates a payment intent, confirming it in the same call
// when input.Confirm is set.
func (c *Client) CreatePaymentIntent(ctx context.Context, input *provider.PaymentIntentInput) (*provider.PaymentIntent, error) {
	params := &stripego.PaymentIntentParams{
		Amount:             stripego.Int64(input.Amount),
		Currency:           stripego.String(strings.ToLower(input.Currency)),
		PaymentMethodTypes: stripego.StringSlice([]string{"card"}),
		CaptureMethod:      optional(input.CaptureMethod),
		Customer:           optional(input.CustomerID),
		PaymentMethod:      optional(input.PaymentMethodID),
	}
	if input.Confirm {
		params.Confirm = stripego.Bool(true)
	}
	if input.OffSession {
		params.OffSession = stripego.Bool(true)
	}
	withRequest(ctx, &params.Params, input.IdempotencyKey)

	pi, err := c.intents.New(params)
	if err != nil {
		return nil, c.toProviderError(ctx, "create_payment_intent", err)
	}
	return toIntent(pi), nil
}

// ConfirmPaymentIntent confirms an existing payment intent.
func (c *Client) ConfirmPaymentIntent(ctx context.Context, intentID string) (*provider.PaymentIntent, error) {
	params := &stripego.PaymentIntentConfirmParams{}
	withRequest(ctx, &params.Params, "")

	pi, err := c.intents.Confirm(intentID, params)
	if err != nil {
		return nil, c.toProviderError(ctx, "confirm_payment_intent", err)
	}
	return toIntent(pi), nil
}

// CapturePaymentIntent captures amount minor units. The amount is always
// sent; Stripe rejects values it cannot capture.
func (c *Client) CapturePaymentIntent(ctx context.Context, intentID string, amount int64) (*provider.PaymentIntent, error) {
	params := &stripego.PaymentIntentCaptureParams{
		AmountToCapture: stripego.Int64(amount),
	}
	withRequest(ctx, &params.Params, "")

	pi, err := c.intents.Capture(intentID, params)
	if err != nil {
		return nil, c.toProviderError(ctx, "capture_payment_intent", err)
	}
	return toIntent(pi), nil
}

// CancelPaymentIntent cancels an uncaptured payment intent.
func (c *Client) CancelPaymentIntent(ctx context.Context, intentID string) (*provider.PaymentIntent, error) {
	params := &stripego.PaymentIntentCancelParams{}
	withRequest(ctx, &params.Params, "")

	pi, err := c.intents.Cancel(intentID, params)
	if err != nil {
		return nil, c.toProviderError(ctx, "cancel_payment_intent", err)
	}
	return toIntent(pi), nil
}

// CreateRefund refunds input.Amount minor units of a charge. The amount is
// always sent, so a refund is never widened to the full charge.
func (c *Client) CreateRefund(ctx context.Context, input *provider.RefundInput) (*provider.Refund, error) {
	params := &stripego.RefundParams{
		Charge: stripego.String(input.ChargeID),
		Amount: stripego.Int64(input.Amount),
	}
	withRequest(ctx, &params.Params, input.IdempotencyKey)

	r, err := c.refunds.New(params)
	if err != nil {
		return nil, c.toProviderError(ctx, "create_refund", err)
	}

	out := &provider.Refund{
		ID:     r.ID,
		Status: string(r.Status),
		Amount: r.Amount,
	}
	if r.Charge != nil {
		out.ChargeID = r.Charge.ID
	}
	if r.PaymentIntent != nil {
		out.PaymentIntentID = r.PaymentIntent.ID
	}
	return out, nil
}

func withRequest(ctx context.Context, p *stripego.Params, idempotencyKey string) {
	p.Context = ctx
	if idempotencyKey != "" {
		p.SetIdempotencyKey(idempotencyKey)
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return stripego.String(v)
}

func toIntent(pi *stripego.PaymentIntent) *provider.PaymentIntent {
	if pi == nil {
		return nil
	}
	out := &provider.PaymentIntent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		ClientSecret: pi.ClientSecret,
	}
	if pi.Charges == nil {
		return out
	}

	out.Charges = &provider.ChargeList{Data: make([]provider.Charge, 0, len(pi.Charges.Data))}
	for _, ch := range pi.Charges.Data {
		if ch == nil {
			continue
		}
		charge := provider.Charge{
			ID:     ch.ID,
			Status: string(ch.Status),
			Amount: ch.Amount,
		}
		if ch.PaymentIntent != nil {
			charge.PaymentIntentID = ch.PaymentIntent.ID
		}
		out.Charges.Data = append(out.Charges.Data, charge)
	}
	return out
}

// toProviderError maps SDK errors onto provider.Error. Transport failures,
// including an open breaker, become connection errors.
func (c *Client) toProviderError(ctx context.Context, call string, err error) *provider.Error {
	var serr *stripego.Error
	if errors.As(err, &serr) {
		return &provider.Error{
			Type:           string(serr.Type),
			Code:           string(serr.Code),
			DeclineCode:    string(serr.DeclineCode),
			Message:        serr.Msg,
			HTTPStatusCode: serr.HTTPStatusCode,
			RequestID:      serr.RequestID,
			Err:            err,
		}
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		c.logger.WarnContext(ctx, "stripe request failed",
			slog.String("call", call),
			slog.String("error", err.Error()),
		)
		return &provider.Error{
			Type:    provider.ErrorTypeConnection,
			Message: fmt.Sprintf("request to Stripe failed: %v", err),
			Err:     err,
		}
	}

	return &provider.Error{
		Type:    provider.ErrorTypeAPI,
		Message: err.Error(),
		Err:     err,
	}
}

// leveledLogger routes SDK log lines to slog.
type leveledLogger struct {
	logger *slog.Logger
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "stripe-sdk"))
}

func (l *leveledLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "stripe-sdk"))
}

func (l *leveledLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...), slog.String("component", "stripe-sdk"))
}

func (l *leveledLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "stripe-sdk"))
}
