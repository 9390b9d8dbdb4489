// Package embedding produces vectors for profiles, jobs, projects and
// hackathons and backfills the rows that have none.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// DefaultDimensions is the vector size of every embedding column.
const DefaultDimensions = 768

// ErrDimensionMismatch is returned when an engine yields a vector of the
// wrong length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Engine turns text into vectors.
type Engine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// ZeroVector returns a vector of n zeros.
func ZeroVector(n int) []float32 {
	return make([]float32, n)
}

func checkDims(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}

// EmbedOrZero embeds text and substitutes a zero vector of the engine's
// dimensionality when the text is blank or the engine fails. The returned
// error reports the failure; the vector is always usable.
func EmbedOrZero(ctx context.Context, e Engine, text string) ([]float32, error) {
	if isBlank(text) {
		return ZeroVector(e.Dimensions()), nil
	}
	vec, err := e.Embed(ctx, text)
	if err == nil {
		err = checkDims(vec, e.Dimensions())
	}
	if err != nil {
		return ZeroVector(e.Dimensions()), err
	}
	return vec, nil
}
