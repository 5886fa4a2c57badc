package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/keyword-tracker/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Workers.Concurrency = 2
	cfg.Workers.QueueDepth = 8
	cfg.HTTP.TimeoutSeconds = 5
	return cfg
}

func TestBuildRegistersConfiguredSchedules(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Schedules = []config.ScheduleConfig{
		{Name: "prices", URL: "https://example.com/prices", Keywords: []string{"sale"}},
		{Name: "news", URL: "https://example.com/news", Keywords: []string{"launch"}, IntervalMinutes: 5},
	}

	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	job, err := app.service.Schedule("prices")
	require.NoError(t, err)
	require.Equal(t, time.Hour, job.Spec.Interval)
	job, err = app.service.Schedule("news")
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, job.Spec.Interval)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/track/schedule", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"job_name":"prices"`)
}

func TestBuildRejectsInvalidSchedule(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Schedules = []config.ScheduleConfig{{Name: "broken", URL: "not a url", Keywords: []string{"x"}}}

	_, err := Build(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, `register schedule "broken"`)
}

func TestBuildSMTPNotifierRequiresHost(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Notify.Driver = config.DriverSMTP

	_, err := Build(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "smtp notifier init failed")

	cfg.SMTP.Host = "mail.example.com"
	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, app.Close(context.Background()))
}

func TestServeTracksPageEndToEnd(t *testing.T) {
	t.Parallel()

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><script>var alpha = 1;</script></head>
<body><p>Alpha rises today. Nothing else here.</p><p>Beta and alpha again!</p></body></html>`)
	}))
	t.Cleanup(page.Close)

	core, logs := observer.New(zap.InfoLevel)
	app, err := Build(context.Background(), testConfig(t), zap.New(core))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- app.Serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	body := fmt.Sprintf(`{"url":%q,"keywords":["alpha","gamma"]}`, page.URL)
	resp, err := http.Post(base+"/track", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	var accepted map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var status struct {
		Status string `json:"status"`
		Result struct {
			Matches []struct {
				Keyword  string   `json:"keyword"`
				Count    int      `json:"count"`
				Snippets []string `json:"snippets"`
			} `json:"matches"`
		} `json:"result"`
	}
	require.Eventually(t, func() bool {
		r, err := http.Get(base + "/status/" + accepted["task_id"])
		if err != nil {
			return false
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
			return false
		}
		return status.Status == "completed"
	}, 5*time.Second, 20*time.Millisecond)

	require.Len(t, status.Result.Matches, 2)
	require.Equal(t, "alpha", status.Result.Matches[0].Keyword)
	require.Equal(t, 2, status.Result.Matches[0].Count)
	require.Equal(t, []string{"Alpha rises today.", "Beta and alpha again!"}, status.Result.Matches[0].Snippets)
	require.Zero(t, status.Result.Matches[1].Count)
	require.Equal(t, 1, logs.FilterMessage("keyword notification").Len())

	cancel()
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
