// Task 5.1: typed context keys.
// A private key type prevents collisions with other packages writing to the
// same context.
package ctxkeys

import "context"

type contextKey string

// Actor identifies the authenticated client ("mobile-app", "cli", ...).
const Actor contextKey = "actor"

// WithValue stores val under key using the package's private key type.
func WithValue(ctx context.Context, key contextKey, val string) context.Context {
	return context.WithValue(ctx, key, val)
}

// Value reads a string stored under key, "" when absent.
func Value(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}
