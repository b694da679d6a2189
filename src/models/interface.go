package models

import "context"

// Agent is a single-turn text-generation client.
// Generate returns the provider's reply; use Text to coerce it to a string.
type Agent interface {
	Generate(ctx context.Context, prompt string) (any, error)
}

// StreamChunk carries one increment of a streamed generation.
type StreamChunk struct {
	Delta    string
	FullText string
	Done     bool
	Err      error
}

// Streamer is implemented by providers that support incremental output.
type Streamer interface {
	GenerateStream(ctx context.Context, prompt string) (<-chan StreamChunk, error)
}
