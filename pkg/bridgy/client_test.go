package bridgy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bridgypoll/pkg/config"
	errs "bridgypoll/pkg/errors"
	"bridgypoll/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *logger.TestLogger) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.Bridgy.BaseURL = server.URL
	cfg.Bridgy.Timeout = 5 * time.Second
	cfg.RateLimit.RequestsPerMinute = 0
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond

	log := logger.NewTestLogger()
	return NewClient(cfg, log), log
}

func TestPollSendsForm(t *testing.T) {
	var gotPath, gotToken, gotKey, gotMethod, gotUA string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotToken = r.PostForm.Get("token")
		gotKey = r.PostForm.Get("key")
		gotUA = r.UserAgent()
		w.Write([]byte("OK"))
	})

	err := client.Poll(context.Background(), "facebook", "tok", "agxzfmJyaWQtZ3lyFgsS")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/facebook/browser/poll", gotPath)
	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, "agxzfmJyaWQtZ3lyFgsS", gotKey)
	assert.Equal(t, "bridgypoll/1.0", gotUA)
}

func TestStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instagram/browser/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "enabled", "poll-seconds": 1800}`))
	})

	status, err := client.Status(context.Background(), "instagram", "tok", "key")
	require.NoError(t, err)
	assert.True(t, status.Enabled())
	assert.Equal(t, 1800, status.PollSeconds)
}

func TestStatusInvalidJSON(t *testing.T) {
	client, log := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	})

	_, err := client.Status(context.Background(), "facebook", "tok", "key")
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
	assert.True(t, log.HasMessage("failed to parse JSON response"))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType errs.ErrorType
		wantHits int32
	}{
		{"unauthorized", http.StatusUnauthorized, errs.ErrorTypeAuth, 1},
		{"forbidden", http.StatusForbidden, errs.ErrorTypeAuth, 1},
		{"not found", http.StatusNotFound, errs.ErrorTypeNotFound, 1},
		{"bad request", http.StatusBadRequest, errs.ErrorTypeUnknown, 1},
		{"rate limited", http.StatusTooManyRequests, errs.ErrorTypeRateLimit, 3},
		{"server error", http.StatusInternalServerError, errs.ErrorTypeServerError, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				http.Error(w, "nope", tt.status)
			})

			err := client.Poll(context.Background(), "facebook", "tok", "key")
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errs.TypeOf(err))
			assert.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestRetryRecovers(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	})

	require.NoError(t, client.Poll(context.Background(), "facebook", "tok", "key"))
	assert.Equal(t, int32(3), hits.Load())
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	cfg := config.DefaultConfig()
	cfg.Bridgy.BaseURL = server.URL
	cfg.Retry.Enabled = false
	server.Close()

	client := NewClient(cfg, logger.NewNopLogger())
	err := client.Poll(context.Background(), "facebook", "tok", "key")
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestCancelledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Poll(ctx, "facebook", "tok", "key")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "https://brid.gy/facebook/browser/poll", EndpointURL("https://brid.gy/", "facebook", PollEndpoint))
	assert.Equal(t, "http://localhost:8080/instagram/browser/status", EndpointURL("http://localhost:8080", "instagram", StatusEndpoint))
}
