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

// GetDefaultLoggingConfig returns the default configuration that is to be used
// during application startup -- before a provided configuration file or flags
// have been parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   "text",
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// GetDefaultAllocatorConfig returns the default heap tuning used when no
// config file or flags override it.
func GetDefaultAllocatorConfig() AllocatorConfig {
	return AllocatorConfig{
		PreallocatedBlocks:    0,
		YoungBlockThreshold:   32,
		MailboxBlockThreshold: 32,
		ThresholdGrowthFactor: 2.0,
		SurvivorRatioHigh:     0.5,
	}
}

// GetDefaultSchedulerConfig returns the default worker pool sizing used when
// no config file or flags override it. NormalWorkers of 0 is resolved to a
// CPU-based count by Rationalize.
func GetDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PriorityWorkers: 0,
		NormalWorkers:   0,
	}
}
