// Package provider abstracts the generative model behind a single call:
// a system blob plus a turn window in, response text out.
package provider

import (
	"context"

	"courier/internal/dialogue"
)

type Generator interface {
	Generate(ctx context.Context, system string, window []dialogue.Exchange) (string, error)
}
