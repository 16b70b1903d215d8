package kit

import "context"

type contextKey string

const (
	operatorKey  contextKey = "kit_operator"
	transportKey contextKey = "kit_transport"
)

// WithOperator records who is driving the control surface; the panel
// auth middleware sets it from the validated token's subject.
func WithOperator(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operatorKey, name)
}

// GetOperator returns the operator name, or "" when unauthenticated.
func GetOperator(ctx context.Context) string {
	v, _ := ctx.Value(operatorKey).(string)
	return v
}

// WithTransport tags the request with the surface that carried it
// ("http" or "mcp").
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// GetTransport returns the carrying surface, defaulting to "http".
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey).(string); ok {
		return v
	}
	return "http"
}
