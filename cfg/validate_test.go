package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		AppName:   "inko",
		Logging:   GetDefaultLoggingConfig(),
		Allocator: GetDefaultAllocatorConfig(),
		Scheduler: SchedulerConfig{NormalWorkers: 4},
	}
}

func TestValidateConfig_AcceptsDefaults(t *testing.T) {
	c := validConfig()
	assert.NoError(t, ValidateConfig(c))
}

func TestValidateConfig_RejectsZeroMaxFileSize(t *testing.T) {
	c := validConfig()
	c.Logging.LogRotate.MaxFileSizeMb = 0
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfig_RejectsNegativeBackupFileCount(t *testing.T) {
	c := validConfig()
	c.Logging.LogRotate.BackupFileCount = -1
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfig_RejectsGrowthFactorAtOrBelowOne(t *testing.T) {
	c := validConfig()
	c.Allocator.ThresholdGrowthFactor = 1.0
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfig_RejectsSurvivorRatioOutOfRange(t *testing.T) {
	c := validConfig()
	c.Allocator.SurvivorRatioHigh = 1.5
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfig_RejectsBothWorkerCountsZero(t *testing.T) {
	c := validConfig()
	c.Scheduler.NormalWorkers = 0
	c.Scheduler.PriorityWorkers = 0
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfig_AcceptsPriorityWorkersOnly(t *testing.T) {
	c := validConfig()
	c.Scheduler.NormalWorkers = 0
	c.Scheduler.PriorityWorkers = 2
	assert.NoError(t, ValidateConfig(c))
}
