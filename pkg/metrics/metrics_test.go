package metrics_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfincsrun/pkg/metrics"
)

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("docker", "SUCCEEDED"))
	metrics.RecordRun("docker", "SUCCEEDED", 12.5)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("docker", "SUCCEEDED")))
}

func TestRecordPublish(t *testing.T) {
	ok := testutil.ToFloat64(metrics.PublishTotal.WithLabelValues("log", "success"))
	failed := testutil.ToFloat64(metrics.PublishTotal.WithLabelValues("log", "failed"))

	metrics.RecordPublish("log", nil)
	metrics.RecordPublish("log", errors.New("timeout"))

	assert.Equal(t, ok+1, testutil.ToFloat64(metrics.PublishTotal.WithLabelValues("log", "success")))
	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.PublishTotal.WithLabelValues("log", "failed")))
}

func TestWriteTextfile(t *testing.T) {
	metrics.RecordRun("apptainer", "NON_ZERO_EXIT", 1)
	path := filepath.Join(t.TempDir(), "sfincsrun.prom")

	require.NoError(t, metrics.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `sfincsrun_runs_total{backend="apptainer",outcome="NON_ZERO_EXIT"}`)
	assert.NotContains(t, string(data), "go_goroutines")
}
