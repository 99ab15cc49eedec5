// Package source provides raw chat messages from the external
// message-relay collaborator.
package source

import (
	"context"
	"errors"

	"tickerpulse/internal/domain"
)

// ErrSourceUnavailable signals the message source could not be reached
// at all, as opposed to a group that simply has no messages. Raw
// transport errors never cross this boundary.
var ErrSourceUnavailable = errors.New("message source unavailable")

// MessageSource fetches raw messages for a named source/channel.
type MessageSource interface {
	// FetchMessages returns up to limit messages for the source
	// identifier, newest first. An unreachable backend returns
	// ErrSourceUnavailable with an empty slice.
	FetchMessages(ctx context.Context, sourceID string, limit int) ([]domain.RawMessage, error)
}

// StaticSource serves a fixed batch of messages. Used by tests and by
// the CLI when reading messages from a file.
type StaticSource struct {
	Messages []domain.RawMessage
}

// Compile-time interface check.
var _ MessageSource = (*StaticSource)(nil)

// FetchMessages returns up to limit of the fixed messages.
func (s *StaticSource) FetchMessages(_ context.Context, _ string, limit int) ([]domain.RawMessage, error) {
	if limit <= 0 || limit >= len(s.Messages) {
		return s.Messages, nil
	}
	return s.Messages[:limit], nil
}
