package service

import (
	"context"
	"log/slog"

	"github.com/utafrali/stripe-gateway/internal/domain"
	"github.com/utafrali/stripe-gateway/pkg/logger"
)

// AuditLog records engine decision points. Implementations must not fail or
// block the calling flow.
type AuditLog interface {
	LogLine(ctx context.Context, req *domain.GatewayRequest, msg string, attrs ...slog.Attr)
}

// SlogAudit writes audit lines as structured log records.
type SlogAudit struct {
	logger *slog.Logger
}

// NewSlogAudit creates an AuditLog backed by l.
func NewSlogAudit(l *slog.Logger) *SlogAudit {
	return &SlogAudit{logger: l}
}

// LogLine writes one record carrying a snapshot of the request. Card data is
// never included.
func (a *SlogAudit) LogLine(ctx context.Context, req *domain.GatewayRequest, msg string, attrs ...slog.Attr) {
	contact := req.Contact()
	address := req.Address()

	fields := make([]slog.Attr, 0, len(attrs)+1)
	fields = append(fields, slog.Group("request",
		slog.String("txn", req.TransactionID()),
		slog.String("order_number", req.OrderID()),
		slog.String("method", methodName(req)),
		slog.String("amount", amountString(req)),
		slog.String("first", contact.FirstName),
		slog.String("last", contact.LastName),
		slog.String("customer_id", req.CustomerID()),
		slog.String("country", address.Country),
		slog.String("currency", req.CurrencyCode()),
		slog.Bool("sandbox", req.IsSandbox()),
	))
	fields = append(fields, attrs...)

	logger.WithContext(ctx, a.logger).LogAttrs(ctx, slog.LevelInfo, msg, fields...)
}

// NopAudit discards every audit line.
type NopAudit struct{}

// LogLine implements AuditLog.
func (NopAudit) LogLine(context.Context, *domain.GatewayRequest, string, ...slog.Attr) {}

func methodName(req *domain.GatewayRequest) string {
	if req == nil {
		return ""
	}
	return req.MethodName
}

func amountString(req *domain.GatewayRequest) string {
	if req == nil || !req.Amount.Valid {
		return ""
	}
	return req.Amount.Decimal.StringFixed(2)
}
