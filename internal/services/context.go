package services

import "context"

type contextKey int

const (
	runIDKey contextKey = iota
	stageKey
)

// WithRunID annotates ctx with the translation run identifier. Blank ids
// leave ctx unchanged.
func WithRunID(ctx context.Context, id string) context.Context {
	return withValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the translation run identifier, if any.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return valueOf(ctx, runIDKey)
}

// WithStage annotates ctx with the connector state being executed.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

// StageFromContext returns the connector state name, if any.
func StageFromContext(ctx context.Context) (string, bool) {
	return valueOf(ctx, stageKey)
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
