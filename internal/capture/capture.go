// Package capture builds and persists audit events at the two trigger
// points: the HTTP request boundary and domain-object lifecycle transitions.
//
// Capture is synchronous. Once the decision to capture is made, a failure to
// persist is returned to the triggering operation.
package capture

import (
	"context"
	"maps"

	"github.com/persistorai/eventlog/internal/models"
)

// EventWriter persists a captured event.
type EventWriter interface {
	Create(ctx context.Context, ev *models.Event) (int64, error)
}

// PrincipalResolver returns the authenticated principal for ctx, or nil.
type PrincipalResolver interface {
	CurrentPrincipal(ctx context.Context) *models.Principal
}

// PrincipalFunc adapts a function to PrincipalResolver.
type PrincipalFunc func(ctx context.Context) *models.Principal

// CurrentPrincipal calls f.
func (f PrincipalFunc) CurrentPrincipal(ctx context.Context) *models.Principal {
	return f(ctx)
}

// NoPrincipal resolves every request as anonymous.
var NoPrincipal = PrincipalFunc(func(context.Context) *models.Principal { return nil })

type ambientKey struct{}

// WithAmbient returns a copy of ctx carrying values merged over any ambient
// values already present.
func WithAmbient(ctx context.Context, values map[string]any) context.Context {
	merged := AmbientFrom(ctx)
	if merged == nil {
		merged = make(map[string]any, len(values))
	}
	maps.Copy(merged, values)

	return context.WithValue(ctx, ambientKey{}, merged)
}

// AmbientFrom returns a snapshot of the ambient values carried by ctx, or nil.
func AmbientFrom(ctx context.Context) map[string]any {
	values, ok := ctx.Value(ambientKey{}).(map[string]any)
	if !ok {
		return nil
	}

	return maps.Clone(values)
}
