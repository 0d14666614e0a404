package directory

import (
	"context"

	"go.uber.org/zap"
)

// StubResolver bypasses the directory for local development and demo
// environments. Any password is accepted for a known username.
type StubResolver struct {
	entries map[string]Attributes
	logger  *zap.Logger
}

// NewStubResolver creates a resolver backed by a fixed username map.
func NewStubResolver(entries map[string]Attributes, logger *zap.Logger) *StubResolver {
	return &StubResolver{entries: entries, logger: logger}
}

// Authenticate returns the stubbed attributes for the username.
func (r *StubResolver) Authenticate(_ context.Context, username, _ string) (*Attributes, error) {
	attrs, ok := r.entries[username]
	if !ok {
		return nil, ErrAuth
	}
	r.logger.Debug("Directory bypass hit", zap.String("username", username))
	return &attrs, nil
}
