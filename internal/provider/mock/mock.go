package mock

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/utafrali/stripe-gateway/internal/provider"
)

var _ provider.Provider = (*Provider)(nil)

// DeclineCardNumber is a card number the mock always declines.
const DeclineCardNumber = "4000000000000002"

type intentState struct {
	intent   provider.PaymentIntent
	declined bool
	captured int64
}

// Provider is an in-memory payment provider for development and testing.
// It follows the provider's intent lifecycle closely enough for end-to-end
// flows: authorize, capture, cancel and refund.
type Provider struct {
	mu       sync.Mutex
	methods  map[string]provider.PaymentMethodInput
	intents  map[string]*intentState
	charges  map[string]string
	refunded map[string]int64
}

// NewProvider creates a new mock payment provider.
func NewProvider() *Provider {
	return &Provider{
		methods:  make(map[string]provider.PaymentMethodInput),
		intents:  make(map[string]*intentState),
		charges:  make(map[string]string),
		refunded: make(map[string]int64),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// CreatePaymentMethod stores the card in memory.
func (p *Provider) CreatePaymentMethod(_ context.Context, input *provider.PaymentMethodInput) (*provider.PaymentMethod, error) {
	if input.CardNumber == "" {
		return nil, invalidRequest("parameter_missing", "Missing required param: card[number].")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := "pm_mock_" + uuid.NewString()
	p.methods[id] = *input
	return &provider.PaymentMethod{ID: id, Type: "card"}, nil
}

// CreatePaymentIntent creates an intent, confirming it when requested.
func (p *Provider) CreatePaymentIntent(_ context.Context, input *provider.PaymentIntentInput) (*provider.PaymentIntent, error) {
	if input.Amount <= 0 {
		return nil, invalidRequest("amount_too_small", "Amount must be at least 1 minor unit.")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	state := &intentState{
		intent: provider.PaymentIntent{
			ID:       "pi_mock_" + uuid.NewString(),
			Status:   provider.IntentStatusRequiresPaymentMethod,
			Amount:   input.Amount,
			Currency: input.Currency,
		},
	}
	state.intent.ClientSecret = state.intent.ID + "_secret_" + uuid.NewString()[:8]

	if input.PaymentMethodID != "" {
		method, ok := p.methods[input.PaymentMethodID]
		if !ok {
			return nil, invalidRequest("resource_missing", fmt.Sprintf("No such PaymentMethod: '%s'", input.PaymentMethodID))
		}
		state.declined = method.CardNumber == DeclineCardNumber
		state.intent.Status = provider.IntentStatusRequiresConfirmation
	}

	p.intents[state.intent.ID] = state

	if input.Confirm {
		if err := p.confirm(state); err != nil {
			return nil, err
		}
	}

	return state.snapshot(), nil
}

// ConfirmPaymentIntent moves an intent awaiting confirmation to requires_capture.
func (p *Provider) ConfirmPaymentIntent(_ context.Context, intentID string) (*provider.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.lookup(intentID)
	if err != nil {
		return nil, err
	}
	if err := p.confirm(state); err != nil {
		return nil, err
	}
	return state.snapshot(), nil
}

// CapturePaymentIntent captures an authorized intent and attaches a charge.
func (p *Provider) CapturePaymentIntent(_ context.Context, intentID string, amount int64) (*provider.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.lookup(intentID)
	if err != nil {
		return nil, err
	}
	if state.intent.Status != provider.IntentStatusRequiresCapture {
		return nil, unexpectedState(state.intent)
	}
	if amount <= 0 {
		return nil, invalidRequest("parameter_invalid_integer", "Invalid positive integer")
	}
	if amount > state.intent.Amount {
		return nil, invalidRequest("amount_too_large",
			fmt.Sprintf("Amount to capture (%d) is greater than the authorized amount (%d)", amount, state.intent.Amount))
	}

	state.captured = amount
	state.intent.Status = provider.IntentStatusSucceeded
	state.intent.Charges.Data[0].Amount = amount

	return state.snapshot(), nil
}

// CancelPaymentIntent cancels an intent that has not been captured.
func (p *Provider) CancelPaymentIntent(_ context.Context, intentID string) (*provider.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.lookup(intentID)
	if err != nil {
		return nil, err
	}
	switch state.intent.Status {
	case provider.IntentStatusSucceeded, provider.IntentStatusCanceled:
		return nil, unexpectedState(state.intent)
	}
	state.intent.Status = provider.IntentStatusCanceled

	return state.snapshot(), nil
}

// CreateRefund refunds amount minor units of a captured charge.
func (p *Provider) CreateRefund(_ context.Context, input *provider.RefundInput) (*provider.Refund, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	intentID, ok := p.charges[input.ChargeID]
	if !ok {
		return nil, invalidRequest("resource_missing", fmt.Sprintf("No such charge: '%s'", input.ChargeID))
	}
	captured := p.intents[intentID].captured
	if captured == 0 {
		return nil, invalidRequest("charge_not_captured", fmt.Sprintf("Charge %s has not been captured.", input.ChargeID))
	}
	remaining := captured - p.refunded[input.ChargeID]

	amount := input.Amount
	if amount <= 0 {
		return nil, invalidRequest("parameter_invalid_integer", "Invalid positive integer")
	}
	if amount > remaining {
		return nil, invalidRequest("charge_already_refunded",
			fmt.Sprintf("Refund amount (%d) is greater than unrefunded amount on charge (%d)", amount, remaining))
	}
	p.refunded[input.ChargeID] += amount

	return &provider.Refund{
		ID:              "re_mock_" + uuid.NewString(),
		Status:          provider.RefundStatusSucceeded,
		Amount:          amount,
		ChargeID:        input.ChargeID,
		PaymentIntentID: intentID,
	}, nil
}

func (s *intentState) snapshot() *provider.PaymentIntent {
	out := s.intent
	if s.intent.Charges != nil {
		out.Charges = &provider.ChargeList{Data: append([]provider.Charge(nil), s.intent.Charges.Data...)}
	}
	return &out
}

func (p *Provider) confirm(state *intentState) error {
	if state.intent.Status != provider.IntentStatusRequiresConfirmation {
		return unexpectedState(state.intent)
	}
	if state.declined {
		state.intent.Status = provider.IntentStatusRequiresPaymentMethod
		return &provider.Error{
			Type:           provider.ErrorTypeCard,
			Code:           "card_declined",
			DeclineCode:    "generic_decline",
			Message:        "Your card was declined.",
			HTTPStatusCode: http.StatusPaymentRequired,
			RequestID:      newRequestID(),
		}
	}
	// An authorized card carries one succeeded, uncaptured charge.
	chargeID := "ch_mock_" + uuid.NewString()
	p.charges[chargeID] = state.intent.ID
	state.intent.Status = provider.IntentStatusRequiresCapture
	state.intent.Charges = &provider.ChargeList{Data: []provider.Charge{{
		ID:              chargeID,
		Status:          provider.ChargeStatusSucceeded,
		Amount:          state.intent.Amount,
		PaymentIntentID: state.intent.ID,
	}}}
	return nil
}

func (p *Provider) lookup(intentID string) (*intentState, error) {
	state, ok := p.intents[intentID]
	if !ok {
		return nil, invalidRequest("resource_missing", fmt.Sprintf("No such payment_intent: '%s'", intentID))
	}
	return state, nil
}

func invalidRequest(code, message string) *provider.Error {
	return &provider.Error{
		Type:           provider.ErrorTypeInvalidRequest,
		Code:           code,
		Message:        message,
		HTTPStatusCode: http.StatusBadRequest,
		RequestID:      newRequestID(),
	}
}

func unexpectedState(pi provider.PaymentIntent) *provider.Error {
	return invalidRequest("payment_intent_unexpected_state",
		fmt.Sprintf("This PaymentIntent's status is %s.", pi.Status))
}

func newRequestID() string {
	return "req_mock_" + uuid.NewString()[:13]
}
