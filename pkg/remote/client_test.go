package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "pmcharvest/pkg/errors"
	"pmcharvest/pkg/logger"
	"pmcharvest/pkg/metrics"
	"pmcharvest/pkg/ratelimit"
	"pmcharvest/pkg/retry"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func fastRetry() *retry.Config {
	return retry.NewConfig(5, time.Millisecond, time.Millisecond, nil)
}

func scriptedClient(statuses []int, calls *int, rec *metrics.Recorder) *Client {
	return NewClient(Options{
		Retry:   fastRetry(),
		Metrics: rec,
		Logger:  logger.NewTestLogger(),
		HTTPClient: &http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
			status := statuses[*calls]
			*calls++
			return newResponse(status, "payload"), nil
		}}},
	})
}

func TestGetSequence(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int
		wantErr   errs.ErrorType
	}{
		{"ok first try", []int{200}, 1, ""},
		{"throttled twice then ok", []int{429, 429, 200}, 3, ""},
		{"server error then ok", []int{503, 200}, 2, ""},
		{"always throttled", []int{429, 429, 429, 429, 429, 429}, 5, errs.ErrorTypeThrottled},
		{"always failing", []int{500, 500, 500, 500, 500}, 5, errs.ErrorTypeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			client := scriptedClient(tt.statuses, &calls, nil)

			body, err := client.Get(context.Background(), "http://api.test/search", nil)
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "payload", string(body))
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, errs.TypeOf(err))
		})
	}
}

func TestGetRecordsMetrics(t *testing.T) {
	calls := 0
	rec := metrics.New()
	client := scriptedClient([]int{429, 200}, &calls, rec)

	_, err := client.Get(context.Background(), "http://api.test/search", nil)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(rec.Registry(), "pmcharvest_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestGetTransportError(t *testing.T) {
	calls := 0
	client := NewClient(Options{
		Retry: fastRetry(),
		HTTPClient: &http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("connection reset by peer")
		}}},
	})

	_, err := client.Get(context.Background(), "http://api.test/x", nil)
	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.Equal(t, errs.ErrorTypeTransient, errs.TypeOf(err))
	assert.Equal(t, 0, Describe(err)["status"])
}

func TestGetEncodesParamsAndHeaders(t *testing.T) {
	var seen *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		_, _ = w.Write([]byte(`{"hitCount": 7}`))
	}))
	defer srv.Close()

	client := NewClient(Options{Timeout: 5 * time.Second, UserAgent: "pmcharvest-test"})

	var out struct {
		HitCount int `json:"hitCount"`
	}
	params := url.Values{"query": {"breast AND (FIRST_PDATE:[2016-01-01 TO 2016-01-31])"}, "cursorMark": {"*"}}
	require.NoError(t, client.GetJSON(context.Background(), srv.URL+"/search", params, &out))

	assert.Equal(t, 7, out.HitCount)
	require.NotNil(t, seen)
	assert.Equal(t, "*", seen.URL.Query().Get("cursorMark"))
	assert.Equal(t, params.Get("query"), seen.URL.Query().Get("query"))
	assert.Equal(t, "pmcharvest-test", seen.Header.Get("User-Agent"))
}

func TestGetJSONParsingNotRetried(t *testing.T) {
	calls := 0
	log := logger.NewTestLogger()
	client := NewClient(Options{
		Retry:  fastRetry(),
		Logger: log,
		HTTPClient: &http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
			calls++
			return newResponse(200, "<html>maintenance</html>"), nil
		}}},
	})

	var out map[string]interface{}
	err := client.GetJSON(context.Background(), "http://api.test/search", nil, &out)
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
	assert.Equal(t, 1, calls)
	assert.True(t, log.HasMessage("failed to parse JSON response"))
}

func TestGetXML(t *testing.T) {
	client := NewClient(Options{
		HTTPClient: &http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
			return newResponse(200, `<eSearchResult><Count>12</Count></eSearchResult>`), nil
		}}},
	})

	var out struct {
		Count int `xml:"Count"`
	}
	require.NoError(t, client.GetXML(context.Background(), "http://api.test/esearch", nil, &out))
	assert.Equal(t, 12, out.Count)
}

func TestLimiterAppliesToRetries(t *testing.T) {
	calls := 0
	client := NewClient(Options{
		Retry:   retry.NewConfig(3, 0, 0, nil),
		Limiter: ratelimit.NewFixedInterval(20 * time.Millisecond),
		HTTPClient: &http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return newResponse(503, ""), nil
			}
			return newResponse(200, "ok"), nil
		}}},
	})

	start := time.Now()
	_, err := client.Get(context.Background(), "http://api.test/x", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestGetCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Options{Retry: fastRetry()})
	_, err := client.Get(ctx, "http://api.test/x", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidEndpoint(t *testing.T) {
	client := NewClient(Options{})
	_, err := client.Get(context.Background(), "://bad", nil)
	assert.Equal(t, errs.ErrorTypePermanent, errs.TypeOf(err))
	assert.True(t, strings.Contains(err.Error(), "invalid endpoint"))
}
