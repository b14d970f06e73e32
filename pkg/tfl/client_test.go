package tfl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	client := NewClient("test-key")
	client.BaseURL = serverURL
	client.initialInterval = time.Millisecond

	return client
}

func TestClientSendsAppKeyAndUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("app_key"))
		assert.Equal(t, "curl/7.54.1", r.Header.Get("user-agent"))

		w.Write([]byte(`[{"modeName":"tube"},{"modeName":"dlr"}]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	modes, err := client.Modes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tube", "dlr"}, modes)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.Write([]byte(`[{"modeName":"tube","severityLevel":6,"description":"Minor Delays"}]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	codes, err := client.SeverityCodes(context.Background())
	require.NoError(t, err)
	require.Len(t, codes, 1)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "tube", codes[0].ModeName)
	assert.Equal(t, 6, codes[0].SeverityLevel)
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.DisruptionCategories(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Modes(context.Background())
	require.Error(t, err)

	// Initial attempt plus three retries.
	assert.Equal(t, int32(4), calls.Load())
}

func TestDisruptionsByModeDecodesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Line/Mode/tube,dlr/Disruption", r.URL.Path)

		w.Write([]byte(`[
			{
				"category": "RealTime",
				"type": "lineInfo",
				"description": "Minor delays",
				"created": "2026-08-01T10:00:00Z",
				"affectedRoutes": [
					{
						"lineId": "circle",
						"routeSectionNaptanEntrySequence": [
							{"ordinal": 0, "stopPoint": {"naptanId": "940GZZLUALD"}}
						]
					}
				],
				"affectedStops": [{"naptanId": "940GZZLUALD", "commonName": "Aldgate"}]
			}
		]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	disruptions, err := client.DisruptionsByMode(context.Background(), []string{"tube", "dlr"})
	require.NoError(t, err)
	require.Len(t, disruptions, 1)

	assert.Equal(t, "RealTime", disruptions[0].Category)
	require.Len(t, disruptions[0].AffectedRoutes, 1)
	assert.Equal(t, "circle", disruptions[0].AffectedRoutes[0].LineID)
	require.Len(t, disruptions[0].AffectedStops, 1)
	assert.Equal(t, "940GZZLUALD", disruptions[0].AffectedStops[0].NaptanID)
}

func TestLineStatusByModeRequestsDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("detail"))

		w.Write([]byte(`[
			{
				"id": "circle",
				"lineStatuses": [
					{"statusSeverity": 6, "statusSeverityDescription": "Minor Delays"}
				]
			}
		]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	lines, err := client.LineStatusByMode(context.Background(), []string{"tube"})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Len(t, lines[0].LineStatuses, 1)
	assert.Equal(t, 6, lines[0].LineStatuses[0].StatusSeverity)
}

func TestParseTimestamp(t *testing.T) {
	assert.Nil(t, ParseTimestamp(""))
	assert.Nil(t, ParseTimestamp("yesterday"))

	parsed := ParseTimestamp("2026-08-01T10:00:00Z")
	require.NotNil(t, parsed)
	assert.Equal(t, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), *parsed)

	offset := ParseTimestamp("2026-08-01T11:00:00+01:00")
	require.NotNil(t, offset)
	assert.Equal(t, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), *offset)
}
