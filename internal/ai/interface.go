package ai

import (
	"context"
	"errors"
)

var ErrEmptyCompletion = errors.New("empty completion")

// Provider is the contract for hosted completion models.
// This interface allows swapping Gemini, OpenAI or a test double.
type Provider interface {
	// Complete returns the whole completion for req.
	Complete(ctx context.Context, req Request) (string, error)

	// Stream returns fragments of the completion in generation order.
	Stream(ctx context.Context, req Request) (TextStream, error)
}

// TextStream yields completion fragments. Recv returns io.EOF after the
// last fragment.
type TextStream interface {
	Recv() (string, error)
	Close() error
}
