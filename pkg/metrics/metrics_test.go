package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	rec := New()

	rec.ObserveDocument("europepmc", "downloaded")
	rec.ObserveDocument("europepmc", "downloaded")
	rec.ObserveDocument("europepmc", "skipped")
	rec.ObservePage("europepmc")
	rec.ObserveWindow("europepmc", "complete")
	rec.ObserveHTTP(429)
	rec.ObserveHTTP(200)
	rec.ObserveCheckpointSave()
	rec.ObserveRateLimitWait(300 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.documentsTotal.WithLabelValues("europepmc", "downloaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.documentsTotal.WithLabelValues("europepmc", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.httpRequestsTotal.WithLabelValues("429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.checkpointSavesTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.rateLimitWaitSeconds))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.ObserveDocument("x", "y")
	rec.ObserveHTTP(500)
	rec.ObserveRateLimitWait(time.Second)
	assert.NoError(t, rec.WriteTextfile("/nonexistent/dir/file.prom"))
	assert.Nil(t, rec.Registry())
}

func TestWriteTextfile(t *testing.T) {
	rec := New()
	rec.ObservePage("eutils")

	path := filepath.Join(t.TempDir(), "pmcharvest.prom")
	require.NoError(t, rec.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `pmcharvest_pages_total{provider="eutils"} 1`)
}

func TestHandler(t *testing.T) {
	rec := New()
	rec.ObserveWindow("eutils", "aborted")

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pmcharvest_windows_total{provider="eutils",state="aborted"} 1`)
}
