package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splatpipe/splatpipe/internal/event"
)

func TestRecorder_StageEvents(t *testing.T) {
	r := NewRecorder()
	bus := event.NewBus(nil)
	ids := r.Attach(bus)
	assert.Len(t, ids, 3)

	bus.Publish(event.NewStageCompletedEvent("run", "relocate", 1, "/x", "local", 2*time.Second))
	bus.Publish(event.NewStageCompletedEvent("run", "reconstruct", 2, "", "foreign", time.Minute))
	bus.Publish(event.NewPipelineFailedEvent("run", "await-output", errors.New("canceled"), 0))

	assert.Equal(t, 1.0, promtestutil.ToFloat64(r.stageOutcomes.WithLabelValues("relocate", OutcomeSuccess)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(r.stageOutcomes.WithLabelValues("await-output", OutcomeFailure)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(r.runs.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(r.runs.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2, promtestutil.CollectAndCount(r.stageDuration))
}

func TestRecorder_Completed(t *testing.T) {
	r := NewRecorder()
	bus := event.NewBus(nil)
	r.Attach(bus)

	completed := event.NewPipelineCompletedEvent("run", "/a/output.ply", "/a/reload.trigger", 90*time.Second)
	bus.Publish(completed)
	r.SetVertices(1234)

	assert.Equal(t, 1.0, promtestutil.ToFloat64(r.runs.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, float64(completed.Timestamp().Unix()), promtestutil.ToFloat64(r.lastSuccess))
	assert.Equal(t, 1234.0, promtestutil.ToFloat64(r.vertices))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.SetVertices(7)
	path := filepath.Join(t.TempDir(), "splatpipe.prom")

	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "splatpipe_transcoded_vertices 7"), string(data))
}

func TestRecorder_WriteTextfile_EmptyPath(t *testing.T) {
	assert.NoError(t, NewRecorder().WriteTextfile(""))
}

func TestRecorder_WriteTextfile_BadDir(t *testing.T) {
	err := NewRecorder().WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	assert.Error(t, err)
}
