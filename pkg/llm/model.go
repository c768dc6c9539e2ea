package llm

import (
	"context"

	"github.com/pkg/errors"

	"github.com/go-go-golems/moviechat/pkg/tools"
	"github.com/go-go-golems/moviechat/pkg/turns"
)

// ErrEmptyResponse is returned when a provider answers with no candidate.
var ErrEmptyResponse = errors.New("model returned no content")

// Request is everything a model sees for one round-trip.
type Request struct {
	SystemPrompt string
	History      []turns.Turn
	Tools        []tools.Definition
}

// Model is a conversation service that supports function calling. Complete
// returns a single model turn: either text or one tool call.
type Model interface {
	Complete(ctx context.Context, req Request) (turns.Turn, error)
}

// Closer is implemented by models holding network clients.
type Closer interface {
	Close() error
}
