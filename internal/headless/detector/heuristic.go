// Package detector decides when a probed page needs a headless render before
// its text can be matched.
package detector

import (
	"bytes"
	"net/http"

	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

const (
	defaultBodyThreshold = 2048
	scriptCoveragePct    = 25
)

// Heuristic promotes empty pages, SPA shells and small script-heavy documents.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a detector. A threshold of zero selects the default.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = defaultBodyThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// ShouldPromote reports whether the probe response looks client-rendered.
// Only successful probes are promoted; errors are surfaced as they are.
func (h *Heuristic) ShouldPromote(resp tracker.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	body := resp.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether <script> elements cover at least a
// quarter of the document. An unclosed tag counts through the end.
func scriptDensityHigh(body []byte) bool {
	lower := bytes.ToLower(body)
	total := len(lower)
	if total == 0 {
		return false
	}

	openTag := []byte("<script")
	closeTag := []byte("</script>")
	covered := 0
	pos := 0
	for {
		rel := bytes.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		end := total
		if closeRel := bytes.Index(lower[start:], closeTag); closeRel != -1 {
			end = start + closeRel + len(closeTag)
		}
		covered += end - start
		pos = end
		if pos >= total {
			break
		}
	}
	return covered*100/total >= scriptCoveragePct
}
