package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/stripe-gateway/internal/domain"
	"github.com/utafrali/stripe-gateway/internal/provider"
	"github.com/utafrali/stripe-gateway/pkg/tracing"
)

// Call-site tags reported in diagnostics when a provider call fails.
const (
	OpAuthorizeConfirm      = "authorize_01"
	OpAuthorizeCreateMethod = "authorize_02"
	OpAuthorizeCreateIntent = "authorize_03"
	OpCapture               = "capture_01"
	OpVoid                  = "void_01"
	OpCredit                = "credit_01"
)

const (
	defaultCurrency = "USD"
	responseSuffix  = " via Stripe"
	tracerName      = "github.com/utafrali/stripe-gateway/internal/service"
)

// Fixed response texts for local precondition failures.
const (
	TextAuthorized           = "Authorized" + responseSuffix
	TextMissingIntent        = "Error, Missing paymentIntentId"
	TextCaptureMissingIntent = "No paymentIntentId found on payment, cannot capture"
	TextVoidMissingIntent    = "Error: missing paymentIntentId" + responseSuffix
	TextCreditMissingCharge  = "Error, missing paymentChargeId"
	TextCaptureInvalidAmount = "Error, invalid capture amount"
	TextCreditInvalidAmount  = "Error, invalid refund amount"
	TextEmptyIntent          = "Error, no payment intent returned"
	TextEmptyRefund          = "Error, no refund returned"
)

var idempotencyNamespace = uuid.MustParse("6f1f8c52-53a4-4b7c-9d0e-2f0b6a7c1e55")

// Engine runs the gateway transaction flows against a payment provider.
// It holds no per-transaction state; every provider id it needs is read from
// the request's interaction history.
type Engine struct {
	provider   provider.Provider
	audit      AuditLog
	translator *OutcomeTranslator
	tracer     trace.Tracer
}

// NewEngine creates an engine that drives prov and reports through audit.
func NewEngine(prov provider.Provider, audit AuditLog) *Engine {
	if audit == nil {
		audit = NopAudit{}
	}
	return &Engine{
		provider:   prov,
		audit:      audit,
		translator: NewOutcomeTranslator(audit),
		tracer:     tracing.Tracer(tracerName),
	}
}

// Authorize reserves funds on the shopper's card without capturing them.
func (e *Engine) Authorize(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse {
	ctx, span := e.startSpan(ctx, "Engine.Authorize", req)
	defer span.End()

	resp := e.authorize(ctx, req)
	e.finish(span, "authorize", resp)
	return resp
}

// Capture captures funds on the intent authorized earlier in the transaction.
func (e *Engine) Capture(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse {
	ctx, span := e.startSpan(ctx, "Engine.Capture", req)
	defer span.End()

	resp := e.capture(ctx, req)
	e.finish(span, "capture", resp)
	return resp
}

// AuthorizeAndCapture authorizes and, when the authorization is approved,
// captures in the same call. A failed capture leaves the authorization in
// place.
func (e *Engine) AuthorizeAndCapture(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse {
	ctx, span := e.startSpan(ctx, "Engine.AuthorizeAndCapture", req)
	defer span.End()

	resp := e.authorize(ctx, req)
	if resp.IsDeclined {
		e.finish(span, "authorize_and_capture", resp)
		return resp
	}

	authorized := req.WithInteraction(domain.GatewayInteraction{
		IsSuccessful:    true,
		TransactionType: domain.TransactionTypeAuthorize,
		ResponseData:    resp.ResponseData,
	})

	resp = e.capture(ctx, authorized)
	e.finish(span, "authorize_and_capture", resp)
	return resp
}

// Void cancels the intent authorized earlier in the transaction.
func (e *Engine) Void(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse {
	ctx, span := e.startSpan(ctx, "Engine.Void", req)
	defer span.End()

	resp := e.void(ctx, req)
	e.finish(span, "void", resp)
	return resp
}

// Credit refunds all or part of the charge captured earlier in the transaction.
func (e *Engine) Credit(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse {
	ctx, span := e.startSpan(ctx, "Engine.Credit", req)
	defer span.End()

	resp := e.credit(ctx, req)
	e.finish(span, "credit", resp)
	return resp
}

func (e *Engine) authorize(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse {
	customerID := req.DataValue(domain.DataKeyStripeCustomerID)
	intentID := req.DataValue(domain.DataKeyPaymentIntentID)
	methodID := req.DataValue(domain.DataKeyPaymentMethodID)
	parentOrderID := req.DataValue(domain.DataKeyParentOrderID)
	continuity := domain.IsContinuityOrder(parentOrderID, req.OrderID())

	e.audit.LogLine(ctx, req, "authorize",
		slog.String("payment_intent_id", intentID),
		slog.String("payment_method_id", methodID),
		slog.String("stripe_customer_id", customerID),
		slog.String("parent_order_id", parentOrderID),
		slog.Bool("continuity_order", continuity),
	)

	var intent *provider.PaymentIntent

	if intentID != "" && !continuity {
		e.audit.LogLine(ctx, req, "confirming existing payment intent", slog.String("payment_intent_id", intentID))

		start := time.Now()
		pi, err := e.provider.ConfirmPaymentIntent(ctx, intentID)
		observeProviderCall(e.provider.Name(), OpAuthorizeConfirm, start, err)
		if err != nil {
			return e.translator.Translate(ctx, req, err, OpAuthorizeConfirm)
		}
		intent = pi
	} else {
		amount := domain.ToMinorUnits(req.Amount)

		if methodID == "" {
			e.audit.LogLine(ctx, req, "creating payment method")

			start := time.Now()
			pm, err := e.provider.CreatePaymentMethod(ctx, paymentMethodInput(req, idempotencyKey(req, OpAuthorizeCreateMethod, amount)))
			observeProviderCall(e.provider.Name(), OpAuthorizeCreateMethod, start, err)
			if err != nil {
				return e.translator.Translate(ctx, req, err, OpAuthorizeCreateMethod)
			}
			if pm != nil {
				methodID = pm.ID
			}
		}

		currency := req.CurrencyCode()
		if currency == "" {
			currency = defaultCurrency
		}

		e.audit.LogLine(ctx, req, "creating payment intent",
			slog.String("payment_method_id", methodID),
			slog.Int64("amount_minor", amount),
			slog.String("currency", currency),
		)

		start := time.Now()
		pi, err := e.provider.CreatePaymentIntent(ctx, &provider.PaymentIntentInput{
			Amount:          amount,
			Currency:        currency,
			CaptureMethod:   provider.CaptureMethodManual,
			Confirm:         true,
			CustomerID:      customerID,
			PaymentMethodID: methodID,
			OffSession:      continuity,
			IdempotencyKey:  idempotencyKey(req, OpAuthorizeCreateIntent, amount),
		})
		observeProviderCall(e.provider.Name(), OpAuthorizeCreateIntent, start, err)
		if err != nil {
			return e.translator.Translate(ctx, req, err, OpAuthorizeCreateIntent)
		}
		intent = pi
	}

	if intent == nil || intent.ID == "" {
		e.audit.LogLine(ctx, req, "no payment intent established")
		return &domain.GatewayResponse{
			IsDeclined:             true,
			RemoteConnectionStatus: domain.ConnectionStatusError,
			ResponseCode:           domain.ResponseCodeFailure,
			ResponseText:           TextMissingIntent,
		}
	}

	charge := intent.FirstCharge()
	e.audit.LogLine(ctx, req, "payment intent result",
		slog.String("payment_intent_id", intent.ID),
		slog.String("status", intent.Status),
	)

	if intent.Status == provider.IntentStatusRequiresCapture && charge != nil && charge.Status == provider.ChargeStatusSucceeded {
		return &domain.GatewayResponse{
			IsDeclined:             false,
			RemoteConnectionStatus: domain.ConnectionStatusSuccess,
			ResponseCode:           domain.ResponseCodeSuccess,
			ResponseText:           TextAuthorized,
			TransactionID:          intent.ID,
			ResponseData: []domain.KeyValue{
				{Key: domain.ResultKeyPaymentIntentID, Value: intent.ID},
			},
		}
	}

	return &domain.GatewayResponse{
		IsDeclined:             true,
		RemoteConnectionStatus: domain.ConnectionStatusError,
		ResponseCode:           domain.ResponseCodeFailure,
		ResponseText:           intent.Status,
		TransactionID:          intent.ID,
		ResponseData: []domain.KeyValue{
			{Key: domain.ResultKeyClientSecret, Value: intent.ClientSecret},
		},
	}
}

func (e *Engine) capture(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse {
	intentID, ok := domain.FindCarriedValue(req.Interactions(), domain.ResultKeyPaymentIntentID,
		domain.TransactionTypeAuthorize, domain.TransactionTypeAuthorizeAndCapture)

	e.audit.LogLine(ctx, req, "capture", slog.String("payment_intent_id", intentID))

	if !ok {
		return &domain.GatewayResponse{
			IsDeclined:             true,
			RemoteConnectionStatus: domain.ConnectionStatusError,
			ResponseCode:           domain.ResponseCodeFailure,
			ResponseText:           TextCaptureMissingIntent,
		}
	}

	amount := domain.ToMinorUnits(req.Amount)
	if amount <= 0 {
		e.audit.LogLine(ctx, req, "invalid capture amount", slog.Int64("amount_minor", amount))
		return declined(TextCaptureInvalidAmount)
	}

	start := time.Now()
	pi, err := e.provider.CapturePaymentIntent(ctx, intentID, amount)
	observeProviderCall(e.provider.Name(), OpCapture, start, err)
	if err != nil {
		return e.translator.Translate(ctx, req, err, OpCapture)
	}
	if pi == nil {
		return declined(TextEmptyIntent)
	}

	charge := pi.FirstCharge()
	if pi.Status == provider.IntentStatusSucceeded && charge != nil && charge.ID != "" && charge.Status == provider.ChargeStatusSucceeded {
		return &domain.GatewayResponse{
			IsDeclined:             false,
			RemoteConnectionStatus: domain.ConnectionStatusSuccess,
			ResponseCode:           domain.ResponseCodeSuccess,
			ResponseText:           pi.Status + responseSuffix,
			TransactionID:          charge.ID,
			ResponseData: []domain.KeyValue{
				{Key: domain.ResultKeyPaymentChargeID, Value: charge.ID},
				{Key: domain.ResultKeyPaymentIntentID, Value: pi.ID},
			},
		}
	}

	e.audit.LogLine(ctx, req, "capture not completed",
		slog.String("payment_intent_id", pi.ID),
		slog.String("status", pi.Status),
	)
	return &domain.GatewayResponse{
		IsDeclined:             true,
		RemoteConnectionStatus: domain.ConnectionStatusError,
		ResponseCode:           domain.ResponseCodeFailure,
		ResponseText:           pi.Status,
		TransactionID:          pi.ID,
	}
}

func (e *Engine) void(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse {
	intentID, ok := domain.FindCarriedValue(req.Interactions(), domain.ResultKeyPaymentIntentID,
		domain.TransactionTypeAuthorize, domain.TransactionTypeAuthorizeAndCapture)

	e.audit.LogLine(ctx, req, "void", slog.String("payment_intent_id", intentID))

	if !ok {
		e.audit.LogLine(ctx, req, "missing paymentIntentId")
		return &domain.GatewayResponse{
			IsDeclined:             true,
			RemoteConnectionStatus: domain.ConnectionStatusError,
			ResponseCode:           domain.ResponseCodeFailure,
			ResponseText:           TextVoidMissingIntent,
		}
	}

	start := time.Now()
	pi, err := e.provider.CancelPaymentIntent(ctx, intentID)
	observeProviderCall(e.provider.Name(), OpVoid, start, err)
	if err != nil {
		return e.translator.Translate(ctx, req, err, OpVoid)
	}
	if pi == nil {
		return declined(TextEmptyIntent)
	}

	if pi.Status == provider.IntentStatusCanceled {
		return &domain.GatewayResponse{
			IsDeclined:             false,
			RemoteConnectionStatus: domain.ConnectionStatusSuccess,
			ResponseCode:           domain.ResponseCodeSuccess,
			ResponseText:           pi.Status + responseSuffix,
			TransactionID:          pi.ID,
			ResponseData: []domain.KeyValue{
				{Key: domain.ResultKeyPaymentIntentID, Value: pi.ID},
				{Key: domain.ResultKeyClientSecret, Value: pi.ClientSecret},
			},
		}
	}

	return &domain.GatewayResponse{
		IsDeclined:             true,
		RemoteConnectionStatus: domain.ConnectionStatusError,
		ResponseCode:           domain.ResponseCodeFailure,
		ResponseText:           pi.Status + responseSuffix,
		TransactionID:          pi.ID,
	}
}

func (e *Engine) credit(ctx context.Context, req *domain.GatewayRequest) *domain.GatewayResponse {
	chargeID, ok := domain.FindCarriedValue(req.Interactions(), domain.ResultKeyPaymentChargeID,
		domain.TransactionTypeCapture, domain.TransactionTypeAuthorizeAndCapture)

	e.audit.LogLine(ctx, req, "credit", slog.String("payment_charge_id", chargeID))

	if !ok {
		return &domain.GatewayResponse{
			IsDeclined:             true,
			RemoteConnectionStatus: domain.ConnectionStatusError,
			ResponseCode:           domain.ResponseCodeFailure,
			ResponseText:           TextCreditMissingCharge,
		}
	}

	amount := domain.ToMinorUnits(req.Amount)
	if amount <= 0 {
		e.audit.LogLine(ctx, req, "invalid refund amount", slog.Int64("amount_minor", amount))
		return declined(TextCreditInvalidAmount)
	}

	start := time.Now()
	refund, err := e.provider.CreateRefund(ctx, &provider.RefundInput{
		ChargeID:       chargeID,
		Amount:         amount,
		IdempotencyKey: idempotencyKey(req, OpCredit, amount),
	})
	observeProviderCall(e.provider.Name(), OpCredit, start, err)
	if err != nil {
		return e.translator.Translate(ctx, req, err, OpCredit)
	}
	if refund == nil {
		return declined(TextEmptyRefund)
	}

	if refund.Status == provider.RefundStatusSucceeded {
		return &domain.GatewayResponse{
			IsDeclined:             false,
			RemoteConnectionStatus: domain.ConnectionStatusSuccess,
			ResponseCode:           domain.ResponseCodeSuccess,
			ResponseText:           refund.Status,
			TransactionID:          refund.ID,
			ResponseData: []domain.KeyValue{
				{Key: domain.ResultKeyPaymentChargeID, Value: refund.ChargeID},
				{Key: domain.ResultKeyPaymentRefundID, Value: refund.ID},
				{Key: domain.ResultKeyPaymentIntentID, Value: refund.PaymentIntentID},
			},
		}
	}

	return &domain.GatewayResponse{
		IsDeclined:             true,
		RemoteConnectionStatus: domain.ConnectionStatusError,
		ResponseCode:           domain.ResponseCodeFailure,
		ResponseText:           refund.Status,
		TransactionID:          refund.ID,
	}
}

// declined is the response for a call that stopped before or after the
// provider without a usable result.
func declined(text string) *domain.GatewayResponse {
	return &domain.GatewayResponse{
		IsDeclined:             true,
		RemoteConnectionStatus: domain.ConnectionStatusError,
		ResponseCode:           domain.ResponseCodeFailure,
		ResponseText:           text,
	}
}

func paymentMethodInput(req *domain.GatewayRequest, key string) *provider.PaymentMethodInput {
	contact := req.Contact()
	address := req.Address()

	in := &provider.PaymentMethodInput{
		Billing: provider.BillingDetails{
			Name:       joinName(contact.FirstName, contact.LastName),
			Email:      contact.Email,
			Line1:      address.Line1,
			Line2:      address.Line2,
			City:       address.City,
			State:      address.State,
			PostalCode: address.PostalCode,
			Country:    address.Country,
		},
		IdempotencyKey: key,
	}
	if req.Shopper != nil {
		in.Billing.Phone = req.Shopper.PhoneNumber
	}
	if req.Card != nil {
		in.CardNumber = req.Card.Number
		in.ExpMonth = req.Card.ExpireMonth
		in.ExpYear = req.Card.ExpireYear
		in.CVC = req.Card.CVV
	}
	return in
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// idempotencyKey derives a stable key for a provider create call. A host
// retry of the same call yields the same key; once the history grows, the
// key changes. No key is produced without a merchant transaction id.
func idempotencyKey(req *domain.GatewayRequest, op string, amount int64) string {
	txn := req.TransactionID()
	if txn == "" {
		return ""
	}
	name := fmt.Sprintf("%s|%s|%d|%d", txn, op, len(req.Interactions()), amount)
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}

func (e *Engine) startSpan(ctx context.Context, name string, req *domain.GatewayRequest) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("gateway.provider", e.provider.Name()),
		attribute.String("gateway.transaction_id", req.TransactionID()),
		attribute.String("gateway.order_id", req.OrderID()),
		attribute.Int("gateway.history_length", len(req.Interactions())),
	))
}

func (e *Engine) finish(span trace.Span, operation string, resp *domain.GatewayResponse) {
	recordTransaction(operation, resp)

	span.SetAttributes(
		attribute.Bool("gateway.declined", resp.IsDeclined),
		attribute.String("gateway.connection_status", string(resp.RemoteConnectionStatus)),
		attribute.String("gateway.response_code", resp.ResponseCode),
	)
	if resp.IsDeclined && resp.RemoteConnectionStatus == domain.ConnectionStatusError {
		span.SetStatus(codes.Error, resp.ResponseText)
	}
}
