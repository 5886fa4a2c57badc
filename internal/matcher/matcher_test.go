package matcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

func TestMatch_Scenario(t *testing.T) {
	t.Parallel()

	got := Match("Alpha rises. Beta falls twice. beta again.", []string{"alpha", "beta"})

	require.Equal(t, []tracker.MatchResult{
		{Keyword: "alpha", Count: 1, Snippets: []string{"Alpha rises."}},
		{Keyword: "beta", Count: 2, Snippets: []string{"Beta falls twice.", "beta again."}},
	}, got)
}

func TestMatch_ZeroCountHasNoSnippets(t *testing.T) {
	t.Parallel()

	got := Match("Nothing to see here.", []string{"gamma"})
	require.Len(t, got, 1)
	require.Zero(t, got[0].Count)
	require.Empty(t, got[0].Snippets)
	require.NotNil(t, got[0].Snippets)
}

func TestMatch_SubstringInsideWord(t *testing.T) {
	t.Parallel()

	got := Match("The alphabet starts here.", []string{"ALPHA"})
	require.Equal(t, 1, got[0].Count)
	require.Equal(t, []string{"The alphabet starts here."}, got[0].Snippets)
}

func TestMatch_NonOverlappingCount(t *testing.T) {
	t.Parallel()

	got := Match("aaaa", []string{"aa"})
	require.Equal(t, 2, got[0].Count)
}

func TestMatch_PreservesKeywordOrder(t *testing.T) {
	t.Parallel()

	got := Match("b a c", []string{"c", "a", "b"})
	require.Equal(t, "c", got[0].Keyword)
	require.Equal(t, "a", got[1].Keyword)
	require.Equal(t, "b", got[2].Keyword)
}

func TestMatch_SnippetsCappedAndDistinct(t *testing.T) {
	t.Parallel()

	text := "Go is fun. Go is fun. Go again! Go further? Go beyond."
	got := Match(text, []string{"go"})

	require.Equal(t, 5, got[0].Count)
	require.Equal(t, []string{"Go is fun.", "Go again!", "Go further?"}, got[0].Snippets)
}

func TestMatch_KeywordAcrossBoundaryCountsWithoutSnippet(t *testing.T) {
	t.Parallel()

	got := Match("It ends. Then starts.", []string{"ends. then"})
	require.Equal(t, 1, got[0].Count)
	require.Empty(t, got[0].Snippets)
}

func TestSentences_Heuristic(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		[]string{"Dr.", "Smith paid 3.50 today!", "Really?", "Yes"},
		Sentences("Dr. Smith paid 3.50 today! Really?  Yes"),
	)
	require.Empty(t, Sentences("   "))
	require.Equal(t, []string{"No terminal punctuation"}, Sentences("No terminal punctuation"))
}

func TestMatch_Properties(t *testing.T) {
	t.Parallel()

	texts := []string{
		"",
		"Alpha. alpha! ALPHA? alphaalpha",
		"one. two. one. two. one. two. one.",
		"Mixed Case mIxEd case. mixed.",
	}
	keywords := []string{"alpha", "one", "mixed", "absent", "."}
	for _, text := range texts {
		for _, kw := range keywords {
			res := Match(text, []string{kw})[0]
			require.Equal(t, strings.Count(strings.ToLower(text), strings.ToLower(kw)), res.Count)
			require.LessOrEqual(t, len(res.Snippets), MaxSnippets)
			seen := map[string]bool{}
			for _, s := range res.Snippets {
				trimmed := strings.TrimSpace(s)
				require.False(t, seen[trimmed], "duplicate snippet %q", s)
				seen[trimmed] = true
			}
			if res.Count == 0 {
				require.Empty(t, res.Snippets)
			}
		}
	}
}

func FuzzMatch(f *testing.F) {
	f.Add("Alpha rises. Beta falls twice. beta again.", "beta")
	f.Add("a.b. c! d? e", ".")
	f.Fuzz(func(t *testing.T, text, kw string) {
		res := Match(text, []string{kw})
		if len(res) != 1 {
			t.Fatalf("expected 1 result, got %d", len(res))
		}
		if len(res[0].Snippets) > MaxSnippets {
			t.Fatalf("too many snippets: %d", len(res[0].Snippets))
		}
		if res[0].Count == 0 && len(res[0].Snippets) != 0 {
			t.Fatalf("snippets without matches: %v", res[0].Snippets)
		}
	})
}
