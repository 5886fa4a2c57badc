package executor

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

// Summary builds the notification for one execution. ok is false when no
// keyword matched, in which case nothing should be sent.
func Summary(url string, matches []tracker.MatchResult) (subject, body string, ok bool) {
	var sb strings.Builder
	for _, m := range matches {
		if m.Count == 0 {
			continue
		}
		ok = true
		fmt.Fprintf(&sb, "%s: %d occurrence(s)\n", m.Keyword, m.Count)
		for _, snippet := range m.Snippets {
			fmt.Fprintf(&sb, "  - %s\n", snippet)
		}
	}
	if !ok {
		return "", "", false
	}
	subject = "Keyword matches found on " + url
	body = fmt.Sprintf("Matches on %s:\n\n%s", url, sb.String())
	return subject, body, true
}
