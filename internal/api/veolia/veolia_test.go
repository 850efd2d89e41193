package veolia

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/bin-collection/internal/api"
	"github.com/andygrunwald/bin-collection/internal/retry"
)

const sampleBody = `{"d":[
	{"__type":"VeoliaProxy.NoticeBoard.Service","ServiceName":"Domestic Refuse Collection","ServiceHeaders":[
		{"TaskType":"Empty Bin","Last":"2025-08-22T07:00:00+01:00","Next":"2025-09-05T07:00:00+01:00","ScheduleDescription":"Every other Friday"}]},
	{"__type":"VeoliaProxy.NoticeBoard.Service","ServiceName":"Domestic Food Waste Collection","ServiceHeaders":[
		{"TaskType":"Empty Caddy","Last":"2025-08-29T07:00:00+01:00","Next":"2025-09-05T07:00:00+01:00","ScheduleDescription":"Every Friday"}]},
	{"__type":"VeoliaProxy.NoticeBoard.Service","ServiceName":"Bulky Waste","ServiceHeaders":[]}
]}`

func newTestProvider(t *testing.T, url string, opts ...Option) *Provider {
	t.Helper()

	policy := retry.Default()
	policy.Delay = time.Millisecond
	opts = append([]Option{WithURL(url), WithRetryPolicy(policy)}, opts...)
	return New(zerolog.Nop(), opts...)
}

func TestFetch(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json; charset=UTF-8", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &gotBody))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	resp, raw, err := p.Fetch(context.Background(), " 100080869553 ")

	require.NoError(t, err)
	assert.Equal(t, sampleBody, string(raw))
	require.Len(t, resp.D, 3)
	assert.Equal(t, "Domestic Refuse Collection", resp.D[0].ServiceName)
	assert.Equal(t, "2025-09-05T07:00:00+01:00", resp.D[0].ServiceHeaders[0].Next)
	assert.Equal(t, "Every Friday", resp.D[1].ServiceHeaders[0].ScheduleDescription)
	assert.Empty(t, resp.D[2].ServiceHeaders)

	assert.Equal(t, map[string]any{"uprn": float64(100080869553), "noticeBoard": "default"}, gotBody)
	assert.Equal(t, ProviderName, p.Name())
}

func TestFetchNullRecords(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"d":null}`))
	}))
	defer server.Close()

	resp, _, err := newTestProvider(t, server.URL).Fetch(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, resp.D)
}

func TestFetchBlocked(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		status int
		body   string
	}{
		"too many requests":        {status: http.StatusTooManyRequests, body: "slow down"},
		"forbidden":                {status: http.StatusForbidden, body: "<html>Forbidden</html>"},
		"not found":                {status: http.StatusNotFound, body: ""},
		"fault mentioning a block": {status: http.StatusInternalServerError, body: `{"Message":"Request blocked by firewall"}`},
		"rate limit fault":         {status: http.StatusServiceUnavailable, body: `{"Message":"Rate limit exceeded"}`},
		"waf page with 200":        {status: http.StatusOK, body: "<html><h1>Access Blocked</h1></html>"},
		"asmx fault with 200":      {status: http.StatusOK, body: `{"Message":"You have been blocked"}`},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, _, err := newTestProvider(t, server.URL).Fetch(context.Background(), "100080869553")

			require.Error(t, err)
			assert.True(t, api.IsBlocked(err), "expected a blocked error, got %v", err)
			assert.False(t, api.IsTransient(err))
			assert.Equal(t, int32(1), hits.Load(), "blocked requests must not be retried")
		})
	}
}

func TestFetchUnexpectedStatus(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"Message":"Object reference not set to an instance of an object."}`))
	}))
	defer server.Close()

	_, _, err := newTestProvider(t, server.URL).Fetch(context.Background(), "100080869553")

	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "Object reference")
	assert.False(t, api.IsBlocked(err))
	assert.False(t, api.IsTransient(err))
	assert.Equal(t, int32(1), hits.Load(), "status errors are not network failures")
}

func TestFetchMalformedBody(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":        "<html>maintenance</html>",
		"no d member":     `{"result":[]}`,
		"fault":           `{"Message":"Invalid web service call"}`,
		"d is not a list": `{"d":"nope"}`,
	}

	for name, body := range tests {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			_, _, err := newTestProvider(t, server.URL).Fetch(context.Background(), "1")
			require.Error(t, err)
			assert.False(t, api.IsBlocked(err))
			assert.False(t, api.IsTransient(err))
		})
	}
}

func TestFetchTimeoutIsRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, WithTimeout(50*time.Millisecond))
	_, _, err := p.Fetch(context.Background(), "100080869553")

	require.Error(t, err)
	assert.True(t, api.IsTransient(err), "expected a transient error, got %v", err)

	var transient *api.TransientError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 3, transient.Attempts)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchConnectionRefused(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, _, err := newTestProvider(t, url).Fetch(context.Background(), "100080869553")

	require.Error(t, err)
	assert.True(t, api.IsTransient(err), "expected a transient error, got %v", err)
}

func TestFetchInvalidUPRN(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	_, _, err := newTestProvider(t, server.URL).Fetch(context.Background(), "12 Acacia Avenue")

	require.Error(t, err)
	assert.False(t, api.IsTransient(err))
	assert.Equal(t, int32(0), hits.Load())
}
