package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyRequestID   contextKey = "request_id"
	keyBranchID    contextKey = "branch_id"
	keyParticipant contextKey = "participant"
)

// WithRequestID adds a request ID to context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestID extracts the request ID from context.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok && v != ""
}

// WithBranchID adds the conversation branch a call belongs to.
func WithBranchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyBranchID, id)
}

// BranchID extracts the branch ID from context.
func BranchID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyBranchID).(string)
	return v, ok && v != ""
}

// WithParticipant adds the participant name a call is made for.
func WithParticipant(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyParticipant, name)
}

// Participant extracts the participant name from context.
func Participant(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyParticipant).(string)
	return v, ok && v != ""
}
