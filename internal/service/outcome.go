package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/utafrali/stripe-gateway/internal/domain"
	"github.com/utafrali/stripe-gateway/internal/provider"
)

// Result keys for translated provider errors, in the order they are emitted.
const (
	DiagKeyCode        = "code"
	DiagKeyDeclineCode = "decline_code"
	DiagKeyMessage     = "message"
	DiagKeyName        = "name"
	DiagKeyStatusCode  = "status_code"
	DiagKeyType        = "type"
	DiagKeyRequestID   = "request_id"
	DiagKeyOperation   = "operation"
)

const providerErrorPrefix = "provider API error: "

// OutcomeTranslator maps provider failures onto gateway responses.
type OutcomeTranslator struct {
	audit AuditLog
}

// NewOutcomeTranslator creates a translator that reports through audit.
func NewOutcomeTranslator(audit AuditLog) *OutcomeTranslator {
	if audit == nil {
		audit = NopAudit{}
	}
	return &OutcomeTranslator{audit: audit}
}

// Translate converts err, raised at call site op, into a declined response.
// Card declines are rejected; every other failure is reported as an error.
// It always returns a response.
func (t *OutcomeTranslator) Translate(ctx context.Context, req *domain.GatewayRequest, err error, op string) *domain.GatewayResponse {
	perr := provider.AsError(err)
	if perr == nil {
		perr = &provider.Error{Type: provider.ErrorTypeAPI, Message: "unknown provider failure"}
	}

	resp := &domain.GatewayResponse{
		IsDeclined:    true,
		TransactionID: perr.RequestID,
		ResponseData:  diagnostics(perr, op),
	}

	if perr.IsCardError() {
		resp.RemoteConnectionStatus = domain.ConnectionStatusReject
		resp.ResponseCode = perr.Code
		resp.ResponseText = perr.Message
	} else {
		resp.RemoteConnectionStatus = domain.ConnectionStatusError
		resp.ResponseCode = domain.ResponseCodeFailure
		resp.ResponseText = providerErrorPrefix + perr.Message
	}

	t.audit.LogLine(ctx, req, "provider call failed",
		slog.String("operation", op),
		slog.String("error_type", perr.Type),
		slog.String("error_code", perr.Code),
		slog.String("request_id", perr.RequestID),
		slog.String("connection_status", string(resp.RemoteConnectionStatus)),
	)

	return resp
}

func diagnostics(perr *provider.Error, op string) []domain.KeyValue {
	status := ""
	if perr.HTTPStatusCode != 0 {
		status = strconv.Itoa(perr.HTTPStatusCode)
	}
	return []domain.KeyValue{
		{Key: DiagKeyCode, Value: perr.Code},
		{Key: DiagKeyDeclineCode, Value: perr.DeclineCode},
		{Key: DiagKeyMessage, Value: perr.Message},
		{Key: DiagKeyName, Value: perr.Name()},
		{Key: DiagKeyStatusCode, Value: status},
		{Key: DiagKeyType, Value: perr.Type},
		{Key: DiagKeyRequestID, Value: perr.RequestID},
		{Key: DiagKeyOperation, Value: op},
	}
}
