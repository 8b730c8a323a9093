// Package gate serializes access to the single GPU. At most one of the three
// model tenants (writer, auditor, synthesizer) is resident at any instant;
// the gate is the sole arbiter of that slot.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Tenant names a GPU-resident role.
type Tenant string

const (
	TenantWriter      Tenant = "writer"
	TenantAuditor     Tenant = "auditor"
	TenantSynthesizer Tenant = "synthesizer"
)

// GateError signals misuse of the gate, such as nesting across tenants.
// Misuse is a programming error and aborts the run.
type GateError struct {
	Held      Tenant
	Requested Tenant
}

func (e *GateError) Error() string {
	return fmt.Sprintf("gate: cannot acquire %q while %q is resident in the same call chain", e.Requested, e.Held)
}

// Loader materializes and releases a tenant's model. Loading may be an
// expensive model load or a cheap no-op; the gate does not care.
type Loader interface {
	Load(ctx context.Context, t Tenant) error
	Unload(ctx context.Context, t Tenant) error
}

// NopLoader is a Loader that does nothing. Useful for remote backends where
// residency is managed server-side, and for tests.
type NopLoader struct{}

func (NopLoader) Load(context.Context, Tenant) error   { return nil }
func (NopLoader) Unload(context.Context, Tenant) error { return nil }

type ctxKey struct{}

// Gate is the process-wide mutual exclusion for model residency.
type Gate struct {
	mu     sync.Mutex
	loader Loader
}

// New creates a Gate using the given loader.
func New(loader Loader) *Gate {
	if loader == nil {
		loader = NopLoader{}
	}
	return &Gate{loader: loader}
}

// WithTenant runs fn with the named tenant resident. Acquisition blocks until
// any other tenant has released. Release is guaranteed on every exit path.
// Re-entrant acquisition of the same tenant within the same call chain is a
// no-op; nesting across different tenants fails fast with a GateError.
func (g *Gate) WithTenant(ctx context.Context, t Tenant, fn func(ctx context.Context) error) error {
	if held, ok := ctx.Value(ctxKey{}).(Tenant); ok {
		if held == t {
			return fn(ctx)
		}
		return &GateError{Held: held, Requested: t}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	slog.Debug("Gate: tenant resident", "tenant", t)
	if err := g.loader.Load(ctx, t); err != nil {
		return fmt.Errorf("gate: failed to load tenant %q: %w", t, err)
	}
	defer func() {
		if err := g.loader.Unload(context.WithoutCancel(ctx), t); err != nil {
			slog.Warn("Gate: tenant unload failed", "tenant", t, "error", err)
		}
		slog.Debug("Gate: tenant released", "tenant", t)
	}()

	return fn(context.WithValue(ctx, ctxKey{}, t))
}
