package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(payload string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{"text": payload}},
			},
		}},
	})
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "gemini-2.5-flash", 5*time.Second)
}

func TestExtract_Success(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	var gotPath, gotKey string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "The current time is 2026-02-01T10:00:00Z")
		assert.Equal(t, "audio/webm", req.Contents[0].Parts[1].InlineData.MimeType)
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

		fmt.Fprint(w, envelope(`{"heading":"Math homework","body":"Exercises 1-10","dueDate":"2026-02-05T23:59:59Z"}`))
	})

	got, err := c.Extract(context.Background(), []byte("fake-audio"), "audio/webm", now)
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "Math homework", got.Heading)
	assert.Equal(t, "Exercises 1-10", got.Body)
	assert.True(t, got.DueDate.Equal(time.Date(2026, 2, 5, 23, 59, 59, 0, time.UTC)))
}

func TestExtract_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Extract(context.Background(), []byte("a"), "audio/webm", time.Now())
	require.Error(t, err)
	assert.Equal(t, ReasonBadStatus, ReasonOf(err))
}

func TestExtract_MalformedEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": [`)
	})

	_, err := c.Extract(context.Background(), []byte("a"), "audio/webm", time.Now())
	assert.Equal(t, ReasonBadEnvelope, ReasonOf(err))
}

func TestExtract_NoCandidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	})

	_, err := c.Extract(context.Background(), []byte("a"), "audio/webm", time.Now())
	assert.Equal(t, ReasonBadEnvelope, ReasonOf(err))
}

func TestExtract_MalformedPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, envelope(`not json at all`))
	})

	_, err := c.Extract(context.Background(), []byte("a"), "audio/webm", time.Now())
	assert.Equal(t, ReasonBadPayload, ReasonOf(err))
}

func TestExtract_MissingField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, envelope(`{"heading":"x","body":"","dueDate":"2026-02-05T23:59:59Z"}`))
	})

	_, err := c.Extract(context.Background(), []byte("a"), "audio/webm", time.Now())
	assert.Equal(t, ReasonMissingField, ReasonOf(err))
}

func TestExtract_UnparseableDueDate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, envelope(`{"heading":"x","body":"y","dueDate":"next tuesday"}`))
	})

	_, err := c.Extract(context.Background(), []byte("a"), "audio/webm", time.Now())
	assert.Equal(t, ReasonBadDueDate, ReasonOf(err))
}

func TestExtract_DueDateOutOfBounds(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		dueDate string
	}{
		{"centuries ahead", "2526-02-05T23:59:59Z"},
		{"years in the past", "2020-01-01T00:00:00Z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, envelope(`{"heading":"x","body":"y","dueDate":"`+tc.dueDate+`"}`))
			})

			_, err := c.Extract(context.Background(), []byte("a"), "audio/webm", now)
			assert.Equal(t, ReasonDueDateOutOfRange, ReasonOf(err))
		})
	}
}

func TestExtract_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 3; i++ {
		_, err := c.Extract(context.Background(), []byte("a"), "audio/webm", time.Now())
		assert.Equal(t, ReasonBadStatus, ReasonOf(err))
	}

	// Breaker now open: the service is no longer called.
	_, err := c.Extract(context.Background(), []byte("a"), "audio/webm", time.Now())
	assert.Equal(t, ReasonUnavailable, ReasonOf(err))
	assert.Equal(t, 3, calls)
}
