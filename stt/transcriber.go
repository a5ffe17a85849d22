package stt

import (
	"context"
)

// Transcriber converts one whole recorded utterance to text. Calls are
// network-bound and must honor the context deadline; an empty string with
// nil error means the service heard nothing intelligible.
type Transcriber interface {
	Transcribe(ctx context.Context, oggOpus []byte) (string, error)
}
