package scoring

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() Request {
	return Request{
		CandidateID:       uuid.New(),
		JobID:             uuid.New(),
		CVTextOrReference: "Senior Go engineer",
		JobDescription:    "Build APIs",
		JobTitle:          "Backend Engineer",
		CallbackURL:       "https://api.hirelane.test/api/scoring/callback",
	}
}

func newClient(t *testing.T, url string) *WebhookClient {
	t.Helper()
	c, err := NewWebhookClient(Config{
		WebhookURL:     url,
		Token:          "wf-token",
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestWebhookClient_Submit(t *testing.T) {
	req := testRequest()

	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer wf-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := newClient(t, srv.URL).Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestWebhookClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newClient(t, srv.URL).Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newClient(t, srv.URL).Submit(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookClient_DoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusBadRequest, ErrRejected},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusUnprocessableEntity, ErrRejected},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := newClient(t, srv.URL).Submit(context.Background(), testRequest())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestRequest_Validate(t *testing.T) {
	req := testRequest()
	req.CVTextOrReference = ""
	assert.ErrorIs(t, req.Validate(), ErrRejected)

	req = testRequest()
	req.CallbackURL = ""
	assert.ErrorIs(t, req.Validate(), ErrRejected)

	assert.NoError(t, testRequest().Validate())
}
