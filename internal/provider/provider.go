package provider

import (
	"context"
	"errors"
	"fmt"
)

// Payment intent statuses reported by the provider.
const (
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
	IntentStatusRequiresConfirmation  = "requires_confirmation"
	IntentStatusRequiresAction        = "requires_action"
	IntentStatusProcessing            = "processing"
	IntentStatusRequiresCapture       = "requires_capture"
	IntentStatusCanceled              = "canceled"
	IntentStatusSucceeded             = "succeeded"
)

// Charge and refund statuses.
const (
	ChargeStatusSucceeded = "succeeded"
	ChargeStatusPending   = "pending"
	ChargeStatusFailed    = "failed"

	RefundStatusSucceeded = "succeeded"
	RefundStatusPending   = "pending"
	RefundStatusFailed    = "failed"
	RefundStatusCanceled  = "canceled"
)

// CaptureMethodManual authorizes funds and leaves the capture to a later call.
const CaptureMethodManual = "manual"

// BillingDetails holds the billing contact attached to a payment method.
type BillingDetails struct {
	Name       string
	Email      string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// PaymentMethodInput holds the parameters for creating a card payment method.
type PaymentMethodInput struct {
	CardNumber     string
	ExpMonth       int
	ExpYear        int
	CVC            string
	Billing        BillingDetails
	IdempotencyKey string
}

// PaymentMethod is a provider-side stored payment instrument.
type PaymentMethod struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// PaymentIntentInput holds the parameters for creating a payment intent.
type PaymentIntentInput struct {
	Amount          int64
	Currency        string
	CaptureMethod   string
	Confirm         bool
	CustomerID      string
	PaymentMethodID string
	OffSession      bool
	IdempotencyKey  string
}

// Charge is a provider charge embedded in a payment intent.
type Charge struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	PaymentIntentID string `json:"payment_intent"`
}

// ChargeList is the provider's paginated list envelope for charges.
type ChargeList struct {
	Data []Charge `json:"data"`
}

// PaymentIntent is the provider's authorization lifecycle object.
type PaymentIntent struct {
	ID           string      `json:"id"`
	Status       string      `json:"status"`
	Amount       int64       `json:"amount"`
	Currency     string      `json:"currency"`
	ClientSecret string      `json:"client_secret"`
	Charges      *ChargeList `json:"charges,omitempty"`
}

// FirstCharge returns the first embedded charge, or nil.
func (pi *PaymentIntent) FirstCharge() *Charge {
	if pi == nil || pi.Charges == nil || len(pi.Charges.Data) == 0 {
		return nil
	}
	return &pi.Charges.Data[0]
}

// RefundInput holds the parameters for refunding a charge.
type RefundInput struct {
	ChargeID       string
	Amount         int64
	IdempotencyKey string
}

// Refund is a provider refund against a charge.
type Refund struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	ChargeID        string `json:"charge"`
	PaymentIntentID string `json:"payment_intent"`
}

// Provider defines the card-payment provider operations the gateway drives.
type Provider interface {
	// Name returns the provider name (e.g., "stripe", "mock").
	Name() string

	// CreatePaymentMethod stores a card and billing details with the provider.
	CreatePaymentMethod(ctx context.Context, input *PaymentMethodInput) (*PaymentMethod, error)

	// CreatePaymentIntent creates (and optionally confirms) a payment intent.
	CreatePaymentIntent(ctx context.Context, input *PaymentIntentInput) (*PaymentIntent, error)

	// ConfirmPaymentIntent confirms an intent created by a storefront flow.
	ConfirmPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)

	// CapturePaymentIntent captures amount minor units on an authorized intent.
	CapturePaymentIntent(ctx context.Context, intentID string, amount int64) (*PaymentIntent, error)

	// CancelPaymentIntent cancels an uncaptured intent.
	CancelPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)

	// CreateRefund refunds all or part of a captured charge.
	CreateRefund(ctx context.Context, input *RefundInput) (*Refund, error)
}

// Error types reported by the provider.
const (
	ErrorTypeCard           = "card_error"
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeAPI            = "api_error"
	ErrorTypeConnection     = "api_connection_error"
	ErrorTypeAuthentication = "authentication_error"
	ErrorTypeRateLimit      = "rate_limit_error"
	ErrorTypePermission     = "permission_error"
	ErrorTypeIdempotency    = "idempotency_error"
	ErrorTypeInvalidGrant   = "invalid_grant"
)

var errorNames = map[string]string{
	ErrorTypeCard:           "CardError",
	ErrorTypeInvalidRequest: "InvalidRequestError",
	ErrorTypeAPI:            "APIError",
	ErrorTypeConnection:     "ConnectionError",
	ErrorTypeAuthentication: "AuthenticationError",
	ErrorTypeRateLimit:      "RateLimitError",
	ErrorTypePermission:     "PermissionError",
	ErrorTypeIdempotency:    "IdempotencyError",
	ErrorTypeInvalidGrant:   "InvalidGrantError",
}

// Error is a failure reported by the provider.
type Error struct {
	Type           string
	Code           string
	DeclineCode    string
	Message        string
	HTTPStatusCode int
	RequestID      string
	Err            error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Name returns a readable name for the error type.
func (e *Error) Name() string {
	if n, ok := errorNames[e.Type]; ok {
		return n
	}
	return "APIError"
}

// IsCardError reports whether the provider declined the card itself.
func (e *Error) IsCardError() bool {
	return e.Type == ErrorTypeCard
}

// AsError normalizes any error returned by a Provider into an *Error.
// Errors that did not come from the provider (transport failures, canceled
// contexts) are reported as connection errors.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return &Error{
		Type:    ErrorTypeConnection,
		Message: err.Error(),
		Err:     err,
	}
}
