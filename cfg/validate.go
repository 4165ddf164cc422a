// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import "fmt"

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidAllocatorConfig(config *AllocatorConfig) error {
	if config.PreallocatedBlocks < 0 {
		return fmt.Errorf("preallocated-blocks can't be negative")
	}
	if config.ThresholdGrowthFactor <= 1.0 {
		return fmt.Errorf("threshold-growth-factor must be greater than 1.0, got %v", config.ThresholdGrowthFactor)
	}
	if config.SurvivorRatioHigh < 0 || config.SurvivorRatioHigh > 1 {
		return fmt.Errorf("survivor-ratio-high must be between 0 and 1, got %v", config.SurvivorRatioHigh)
	}
	if config.YoungBlockThreshold <= 0 {
		return fmt.Errorf("young-block-threshold must be positive")
	}
	if config.MailboxBlockThreshold <= 0 {
		return fmt.Errorf("mailbox-block-threshold must be positive")
	}
	return nil
}

func isValidSchedulerConfig(config *SchedulerConfig) error {
	if config.PriorityWorkers < 0 || config.NormalWorkers < 0 {
		return fmt.Errorf("worker counts can't be negative")
	}
	if config.PriorityWorkers == 0 && config.NormalWorkers == 0 {
		return fmt.Errorf("at least one of priority-workers or normal-workers must be non-zero")
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid. Call
// after Rationalize has filled in CPU-based defaults, since a zero worker
// count is only an error if it's still zero after rationalization.
func ValidateConfig(config *Config) error {
	var err error

	if err = isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	if err = isValidAllocatorConfig(&config.Allocator); err != nil {
		return fmt.Errorf("error parsing allocator config: %w", err)
	}

	if err = isValidSchedulerConfig(&config.Scheduler); err != nil {
		return fmt.Errorf("error parsing scheduler config: %w", err)
	}

	return nil
}
