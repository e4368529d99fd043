package tokengate

import (
	"context"

	"github.com/tokengate/tokengate/identity"
)

type callerKey struct{}

// WithCaller returns a context carrying the calling wallet identity.
// Every authority-checked gate operation reads the caller from its context.
func WithCaller(ctx context.Context, caller identity.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom extracts the calling wallet identity from the context.
// Returns the zero Address if none was attached.
func CallerFrom(ctx context.Context) identity.Address {
	if v := ctx.Value(callerKey{}); v != nil {
		if a, ok := v.(identity.Address); ok {
			return a
		}
	}
	return ""
}
