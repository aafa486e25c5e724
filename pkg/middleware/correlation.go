// Package middleware provides context helpers shared across the API and
// internal packages: authenticated identity and the request correlation
// id that request logs and error responses carry.
package middleware

import "context"

type contextKey string

const correlationKey contextKey = "correlation_id"

// GetCorrelationID extracts the correlation id from the context.
// Returns "" if none is set.
func GetCorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(correlationKey).(string); ok {
		return v
	}
	return ""
}

// SetCorrelationID stores the correlation id in the context.
func SetCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}
