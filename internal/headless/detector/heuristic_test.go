package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

func TestHeuristic_ShouldPromote(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"empty body", 200, "", true},
		{"whitespace body", 200, "  \n ", true},
		{"spa marker", 200, `<div id="__next"></div>`, true},
		{"script heavy small doc", 200, `<html><script>var a=1;</script><p>t</p></html>`, true},
		{"unclosed script", 200, `<p>x</p><script>var a = 1;`, true},
		{"plain article", 200, "<html><body><p>" + strings.Repeat("words ", 50) + "</p></body></html>", false},
		{"not found", 404, "", false},
		{"server error", 500, `<div id="root"></div>`, false},
	}
	h := NewHeuristic(1000)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := h.ShouldPromote(tracker.FetchResponse{StatusCode: tc.status, Body: []byte(tc.body)})
			require.Equal(t, tc.want, got)
		})
	}
}

func TestHeuristic_LargeScriptHeavyDocIsNotPromoted(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	body := `<script>` + strings.Repeat("x", 100) + `</script><p>content</p>`
	require.False(t, h.ShouldPromote(tracker.FetchResponse{StatusCode: 200, Body: []byte(body)}))
}

func TestNewHeuristic_DefaultThreshold(t *testing.T) {
	t.Parallel()

	require.Equal(t, defaultBodyThreshold, NewHeuristic(0).BodyLengthThreshold)
	require.Equal(t, 10, NewHeuristic(10).BodyLengthThreshold)
}
