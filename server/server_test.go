package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmux/icalmask/config"
)

type stubFetcher struct {
	body []byte
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.body, f.err
}

func feedBody() []byte {
	return []byte(strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:abc123",
		"DTSTART:20240101T090000Z",
		"SUMMARY:Dentist",
		"DESCRIPTION:Root canal",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n") + "\r\n")
}

func testServer(fetcher Upstream) *Server {
	cfg := &config.Config{
		Calendars: map[string]config.Calendar{
			"work": {
				URL:              "https://example.org/private.ics",
				Mode:             config.ModeAnonymize,
				CalendarName:     "Busy",
				RedactionMessage: "busy",
				Seed:             "s1",
			},
			"team": {
				URL:        "https://example.org/team.ics",
				Mode:       config.ModeFilter,
				MatchValue: "Dentist",
			},
		},
	}
	cfg.Normalize()
	return New(cfg, fetcher)
}

func get(t *testing.T, s *Server, path string) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Result()
}

func TestServer_AnonymizedCalendar(t *testing.T) {
	s := testServer(&stubFetcher{body: feedBody()})
	resp := get(t, s, "/work")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/calendar; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "SUMMARY:busy")
	assert.NotContains(t, string(body), "Dentist")
	assert.NotContains(t, string(body), "Root canal")
	assert.NotContains(t, string(body), "abc123")
}

func TestServer_FilteredCalendar(t *testing.T) {
	s := testServer(&stubFetcher{body: feedBody()})
	resp := get(t, s, "/team")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "BEGIN:VEVENT")
	assert.Contains(t, string(body), "BEGIN:VCALENDAR")
}

func TestServer_UnknownPath(t *testing.T) {
	s := testServer(&stubFetcher{body: feedBody()})
	resp := get(t, s, "/nope")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "nope")
}

func TestServer_UpstreamFailure(t *testing.T) {
	s := testServer(&stubFetcher{err: errors.New("connection refused")})
	resp := get(t, s, "/work")

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	// Upstream details stay in the logs, not in the response.
	assert.NotContains(t, string(body), "connection refused")
}

func TestServer_MalformedFeed(t *testing.T) {
	s := testServer(&stubFetcher{body: []byte("BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\n")})
	resp := get(t, s, "/work")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := testServer(&stubFetcher{body: feedBody()})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/work", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Result().StatusCode)
}

func TestServer_Healthz(t *testing.T) {
	s := testServer(&stubFetcher{body: feedBody()})
	resp := get(t, s, "/healthz")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok\n", string(body))
}

func TestServer_Metrics(t *testing.T) {
	s := testServer(&stubFetcher{body: feedBody()})
	_ = get(t, s, "/work")

	resp := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "icalmask_requests_total")
}

func TestServer_UpdateConfig(t *testing.T) {
	s := testServer(&stubFetcher{body: feedBody()})

	resp := get(t, s, "/fresh")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	s.UpdateConfig(&config.Config{
		Calendars: map[string]config.Calendar{
			"fresh": {
				URL:              "https://example.org/fresh.ics",
				Mode:             config.ModeAnonymize,
				RedactionMessage: "busy",
				Seed:             "s1",
			},
		},
	})

	resp = get(t, s, "/fresh")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
