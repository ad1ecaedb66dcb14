package appctx

import (
	"context"
	"math/rand"
	"strings"
)

// We define unexported key types to prevent key collisions with other packages.
type traceIDCtxKey struct{}

// WithNewTraceID ensures a trace ID is present in the context.
// If one does not exist, it generates a new random trace ID and returns
// a new context carrying it.
// If one already exists, it returns the original context unmodified.
func WithNewTraceID(ctx context.Context) context.Context {
	if _, ok := TraceIDFrom(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, traceIDCtxKey{}, generateTraceID())
}

// TraceIDFrom extracts a trace ID string from the context, if one exists.
func TraceIDFrom(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(traceIDCtxKey{}).(string)
	if ok {
		return traceID, true
	}
	return "", false
}

// generateTraceID creates a new random trace ID.
// This logic remains unexported as it's an implementation detail.
func generateTraceID() string {
	sb := strings.Builder{}
	sb.Grow(35)

	var q uint64
	var r uint8
	for i := 0; i < 32; i++ {
		if i%15 == 0 {
			q = rand.Uint64()
		}
		q, r = q>>4, uint8(q&0xF)
		if r > 9 {
			r += 0x27 // 'a' - 10
		}
		sb.WriteByte(r + 0x30) // '0'
		if i&7 == 7 && i != 31 {
			sb.WriteByte(0x2D) // '-'
		}
	}
	return sb.String()
}
