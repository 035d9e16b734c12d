package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRequest_ByStatusClass(t *testing.T) {
	c := NewCollector()

	c.RecordRequest("search", 200, 120*time.Millisecond)
	c.RecordRequest("search", 201, 80*time.Millisecond)
	c.RecordRequest("worklog", 404, 10*time.Millisecond)
	c.RecordRequest("worklog", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("search", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("worklog", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("worklog", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.latency))
}

func TestRecordWorklogsAndFailures(t *testing.T) {
	c := NewCollector()

	c.RecordWorklogs(10, 2)
	c.RecordWorklogs(5, 0)
	c.RecordPartialFailure("comment")

	assert.Equal(t, 15.0, testutil.ToFloat64(c.worklogs.WithLabelValues("counted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.worklogs.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.partialFailures.WithLabelValues("comment")))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.RecordPartialFailure("worklog")
	path := filepath.Join(t.TempDir(), "timereport.prom")

	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `timereport_partial_fetch_failures_total{endpoint="worklog"} 1`)
}
