package tracker

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

// MaxIntervalMinutes is the largest minute count a time.Duration can hold.
const MaxIntervalMinutes = math.MaxInt64 / int64(time.Minute)

// IntervalFromMinutes converts a minute count into a Duration. Counts whose
// nanosecond value would overflow int64 are rejected on interval_minutes.
func IntervalFromMinutes(minutes int) (time.Duration, error) {
	if m := int64(minutes); m > MaxIntervalMinutes || m < -MaxIntervalMinutes {
		verr := &ValidationError{}
		verr.Add("interval_minutes", fmt.Sprintf("interval_minutes must be at most %d", MaxIntervalMinutes))
		return 0, verr
	}
	return time.Duration(minutes) * time.Minute, nil
}

// NewTrackingSpec validates rawURL and keywords and returns the normalized spec.
// Keywords are trimmed and exact duplicates dropped, keeping first-seen order.
func NewTrackingSpec(rawURL string, keywords []string) (TrackingSpec, error) {
	verr := &ValidationError{}
	spec := buildTrackingSpec(verr, rawURL, keywords)
	if !verr.Empty() {
		return TrackingSpec{}, verr
	}
	return spec, nil
}

// NewScheduleSpec validates a tracking request plus its recurrence interval.
func NewScheduleSpec(rawURL string, keywords []string, interval time.Duration) (ScheduleSpec, error) {
	verr := &ValidationError{}
	spec := buildTrackingSpec(verr, rawURL, keywords)
	if interval <= 0 {
		verr.Add("interval_minutes", "interval_minutes must be greater than zero")
	}
	if !verr.Empty() {
		return ScheduleSpec{}, verr
	}
	return ScheduleSpec{TrackingSpec: spec, Interval: interval}, nil
}

// Validate re-checks an already-built schedule spec.
func (s ScheduleSpec) Validate() error {
	_, err := NewScheduleSpec(s.URL, s.Keywords, s.Interval)
	return err
}

func buildTrackingSpec(verr *ValidationError, rawURL string, keywords []string) TrackingSpec {
	validateURL(verr, rawURL)
	normalized := normalizeKeywords(verr, keywords)
	return TrackingSpec{URL: strings.TrimSpace(rawURL), Keywords: normalized}
}

func validateURL(verr *ValidationError, rawURL string) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		verr.Add("url", "Missing data for required field.")
		return
	}
	u, err := url.Parse(trimmed)
	if err != nil || !u.IsAbs() || u.Host == "" {
		verr.Add("url", "Not a valid URL.")
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		verr.Add("url", "Not a valid URL.")
	}
}

func normalizeKeywords(verr *ValidationError, keywords []string) []string {
	if len(keywords) == 0 {
		verr.Add("keywords", "At least one keyword is required.")
		return nil
	}
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			verr.Add("keywords", "Keywords must not be empty.")
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
