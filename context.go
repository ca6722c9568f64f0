package authcore

import "context"

type clientOriginContextKey struct{}

// WithClientOrigin attaches the caller's network origin (IP or similar) to
// ctx. The Engine records it on consumed backup codes and on audit events.
func WithClientOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, clientOriginContextKey{}, origin)
}

func clientOriginFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	origin, _ := ctx.Value(clientOriginContextKey{}).(string)
	return origin
}
