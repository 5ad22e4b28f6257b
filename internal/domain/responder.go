package domain

import "context"

// Responder is the generative-AI capability. Each call is attempted at most
// once; an empty response is an error, never an empty string.
type Responder interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
	Healthy(ctx context.Context) error
}
