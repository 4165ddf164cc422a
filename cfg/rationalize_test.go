package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRationalize_LogMutexForcesTraceSeverity(t *testing.T) {
	c := &Config{Debug: DebugConfig{LogMutex: true}, Logging: GetDefaultLoggingConfig()}
	require.NoError(t, Rationalize(c))
	assert.Equal(t, TraceLogSeverity, c.Logging.Severity)
}

func TestRationalize_FillsInNormalWorkersWhenBothZero(t *testing.T) {
	c := &Config{Scheduler: SchedulerConfig{}}
	require.NoError(t, Rationalize(c))
	assert.Equal(t, DefaultSchedulerWorkers(), c.Scheduler.NormalWorkers)
}

func TestRationalize_LeavesExplicitWorkerCountsAlone(t *testing.T) {
	c := &Config{Scheduler: SchedulerConfig{PriorityWorkers: 3}}
	require.NoError(t, Rationalize(c))
	assert.Equal(t, 0, c.Scheduler.NormalWorkers)
	assert.Equal(t, 3, c.Scheduler.PriorityWorkers)
}
