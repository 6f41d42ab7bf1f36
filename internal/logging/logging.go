// Package logging builds the process logger and carries request-scoped
// fields on the context.
package logging

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// New returns a JSON production logger, or a console development logger when
// env is "development" or "dev".
func New(env string) (*zap.Logger, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}

type ctxKey int

const clientIPKey ctxKey = iota

// WithClientIP stores the caller's address for later log lines.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the address stored by WithClientIP, or "".
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// IP is a zap field with the client address found on ctx.
func IP(ctx context.Context) zap.Field {
	return zap.String("ip", ClientIP(ctx))
}
