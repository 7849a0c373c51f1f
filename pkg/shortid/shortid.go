// Package shortid generates short, URL-safe random identifiers.
package shortid

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultLength is the identifier length used when none is configured.
const DefaultLength = 6

// Generator draws identifiers from the nanoid URL-safe alphabet (A-Za-z0-9_-).
// Uniqueness is not checked here; the store rejects collisions on insert.
type Generator struct {
	length int
}

func New(length int) *Generator {
	if length == 0 {
		length = DefaultLength
	}

	return &Generator{length: length}
}

// Generate returns a new random identifier.
func (g *Generator) Generate() (string, error) {
	const op = "shortid.Generator.Generate"

	id, err := gonanoid.New(g.length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate id: %w", op, err)
	}

	return id, nil
}
