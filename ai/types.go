package ai

import (
	"context"
	"errors"
	"fmt"
)

// Message roles understood by the completion provider
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn submitted to the completion provider
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrAPIKeyMissing is returned when no provider credential is configured
var ErrAPIKeyMissing = errors.New("completion provider API key is not configured")

// UpstreamError reports a failure from the completion provider: a
// non-success HTTP status, an empty choice list, or a broken stream
// transport.
type UpstreamError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion provider error: %d - %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("completion provider error: %s", e.Body)
}

// Provider is the completion interface consumed by the service and
// handler layers
type Provider interface {
	ChatCompletion(ctx context.Context, messages []ChatMessage) (string, error)
	ChatCompletionStream(ctx context.Context, messages []ChatMessage) (Stream, error)
}

// Stream is a lazy, finite, non-restartable sequence of completion text
// fragments. Callers must Close it on every exit path.
type Stream interface {
	// Next advances to the following fragment, returning false at the
	// end of the sequence or on error.
	Next() bool
	// Content returns the current fragment.
	Content() string
	// Err reports a transport failure that ended the sequence early.
	Err() error
	// Close releases the underlying transport.
	Close() error
}
