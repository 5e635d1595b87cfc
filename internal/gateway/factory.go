package gateway

import (
	"fmt"
	"log/slog"

	"github.com/utafrali/stripe-gateway/internal/provider"
	"github.com/utafrali/stripe-gateway/internal/service"
)

// ProviderBuilder builds a provider client for one set of credentials.
type ProviderBuilder func(creds Credentials) provider.Provider

// Factory creates adapters per host context.
type Factory struct {
	build          ProviderBuilder
	fallbackSecret string
	audit          service.AuditLog
	logger         *slog.Logger
}

// NewFactory creates a factory. fallbackSecret is used when a host context
// carries no secret key of its own.
func NewFactory(build ProviderBuilder, fallbackSecret string, audit service.AuditLog, logger *slog.Logger) *Factory {
	return &Factory{
		build:          build,
		fallbackSecret: fallbackSecret,
		audit:          audit,
		logger:         logger,
	}
}

// CreateAdapter resolves credentials from actx and wires a provider client,
// an engine and an adapter around them.
func (f *Factory) CreateAdapter(actx AdapterContext) (*Adapter, error) {
	creds, err := ResolveCredentials(actx, f.fallbackSecret)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}

	engine := service.NewEngine(f.build(creds), f.audit)
	return NewAdapter(actx, engine, f.logger), nil
}
