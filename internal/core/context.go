package core

import "context"

type requestMetaKey struct{}

// RequestMeta identifies who asked for an operation, for the audit log.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	UserName  string
}

// WithRequestMeta attaches m to ctx.
func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, m)
}

// RequestMetaFrom returns the metadata attached to ctx, if any.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m
}
