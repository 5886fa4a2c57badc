// Package uuid provides ID generation helpers.
package uuid

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// jobNamePrefix starts every generated recurring-job name.
const jobNamePrefix = "scrape-"

// Generator creates task IDs and job names.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string. Task IDs sort by creation time.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// NewJobName returns "scrape-" followed by 32 hex characters of a random UUID.
func (Generator) NewJobName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	return jobNamePrefix + hex.EncodeToString(id[:]), nil
}
