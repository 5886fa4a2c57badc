// Package uuid includes tests for the UUID generator wrapper.
package uuid

import (
	"regexp"
	"strings"
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewID ensures generated IDs are unique version 7 UUIDs.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	parsed, err := goUUID.Parse(id1)
	if err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
	if _, err := goUUID.Parse(id2); err != nil {
		t.Fatalf("id2 not valid UUID: %v", err)
	}
}

var jobNamePattern = regexp.MustCompile(`^scrape-[0-9a-f]{32}$`)

// TestGeneratorNewJobName checks the generated job name format.
func TestGeneratorNewJobName(t *testing.T) {
	t.Parallel()

	gen := New()
	seen := make(map[string]struct{})
	for range 50 {
		name, err := gen.NewJobName()
		if err != nil {
			t.Fatalf("NewJobName() error = %v", err)
		}
		if !jobNamePattern.MatchString(name) {
			t.Fatalf("unexpected job name %q", name)
		}
		if _, dup := seen[name]; dup {
			t.Fatalf("duplicate job name %q", name)
		}
		seen[name] = struct{}{}
		if strings.Contains(name, "-") && strings.Count(name, "-") != 1 {
			t.Fatalf("expected dashes stripped from %q", name)
		}
	}
}
