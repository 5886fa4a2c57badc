package headless

import (
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestNewChromedp_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1})
	require.Error(t, err)

	fetcher, err := NewChromedp(Config{MaxParallel: 2})
	require.NoError(t, err)
	defer fetcher.Close()
	require.Equal(t, 2, cap(fetcher.limiter))
	require.Equal(t, defaultNavTimeout, fetcher.cfg.NavigationTimeout)

	unbounded, err := NewChromedp(Config{NavigationTimeout: time.Second})
	require.NoError(t, err)
	defer unbounded.Close()
	require.Nil(t, unbounded.limiter)
	require.Equal(t, time.Second, unbounded.cfg.NavigationTimeout)
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	headers := toNetworkHeaders(http.Header{
		"X-One":   {"a"},
		"X-Many":  {"a", "b"},
		"X-Empty": {},
	})
	require.Equal(t, "a", headers["X-One"])
	require.Equal(t, []string{"a", "b"}, headers["X-Many"])
	require.NotContains(t, headers, "X-Empty")
}

func TestResponseMeta_CaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := &responseMeta{}
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeImage,
		Response: &network.Response{
			Status: 500,
			URL:    "https://example.com/img.png",
		},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status: 404,
			URL:    "https://example.com/rendered",
		},
	})
	code, url := meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, 404, code)
	require.Equal(t, "https://example.com/rendered", url)

	empty := &responseMeta{}
	code, url = empty.snapshotWithFallbacks("https://req", "https://final")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "https://final", url)

	code, url = empty.snapshotWithFallbacks("https://req", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "https://req", url)
}
