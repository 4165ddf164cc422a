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

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for one VM instance: how it
// allocates memory, schedules processes, and logs. Its yaml tags name the
// viper keys BindFlags binds flags to, and it is decoded with DecodeHook.
type Config struct {
	AppName string `yaml:"app-name"`

	Allocator AllocatorConfig `yaml:"allocator"`

	Scheduler SchedulerConfig `yaml:"scheduler"`

	Logging LoggingConfig `yaml:"logging"`

	Debug DebugConfig `yaml:"debug"`
}

// AllocatorConfig tunes the GlobalAllocator/LocalAllocator/MailboxAllocator
// trio: how much memory to reserve upfront, and how aggressively to delay
// the next collection once a cycle shows a high survivor ratio.
type AllocatorConfig struct {
	PreallocatedBlocks int `yaml:"preallocated-blocks"`

	YoungBlockThreshold int `yaml:"young-block-threshold"`

	MailboxBlockThreshold int `yaml:"mailbox-block-threshold"`

	ThresholdGrowthFactor float64 `yaml:"threshold-growth-factor"`

	SurvivorRatioHigh float64 `yaml:"survivor-ratio-high"`
}

// SchedulerConfig sizes the static worker pool processes are dispatched
// onto.
type SchedulerConfig struct {
	PriorityWorkers int `yaml:"priority-workers"`

	NormalWorkers int `yaml:"normal-workers"`
}

// LoggingConfig controls severity filtering, output shape, and file
// rotation for the internal/logger package.
type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`

	Format string `yaml:"format"`

	Filename string `yaml:"filename"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

// LogRotateLoggingConfig mirrors the knobs gopkg.in/natefinch/lumberjack.v2
// exposes for rotating the log file on disk.
type LogRotateLoggingConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

// DebugConfig gates developer-facing behavior that should never be on by
// default in production.
type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

// BindFlags registers every Config field as a pflag flag and binds it to
// the matching viper key, so the value given on the command line (or the
// flag's default) is what viper reports for that key. No config file or
// environment variable is read here.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "inko", "Identifies this VM instance in logs and stats output.")

	err = viper.BindPFlag("app-name", flagSet.Lookup("app-name"))
	if err != nil {
		return err
	}

	flagSet.IntP("preallocated-blocks", "", 0, "Number of 32KiB blocks the GlobalAllocator mmaps at startup.")

	err = viper.BindPFlag("allocator.preallocated-blocks", flagSet.Lookup("preallocated-blocks"))
	if err != nil {
		return err
	}

	flagSet.IntP("young-block-threshold", "", 32, "Young-generation block allocations before a minor GC is requested.")

	err = viper.BindPFlag("allocator.young-block-threshold", flagSet.Lookup("young-block-threshold"))
	if err != nil {
		return err
	}

	flagSet.IntP("mailbox-block-threshold", "", 32, "Mailbox-heap block allocations before its own GC is requested.")

	err = viper.BindPFlag("allocator.mailbox-block-threshold", flagSet.Lookup("mailbox-block-threshold"))
	if err != nil {
		return err
	}

	flagSet.Float64P("threshold-growth-factor", "", 2.0, "Multiplier applied to a heap's threshold after a high-survivor-ratio collection.")

	err = viper.BindPFlag("allocator.threshold-growth-factor", flagSet.Lookup("threshold-growth-factor"))
	if err != nil {
		return err
	}

	flagSet.Float64P("survivor-ratio-high", "", 0.5, "Survivor ratio at or above which a heap's threshold is grown instead of held.")

	err = viper.BindPFlag("allocator.survivor-ratio-high", flagSet.Lookup("survivor-ratio-high"))
	if err != nil {
		return err
	}

	flagSet.IntP("priority-workers", "", 0, "OS threads reserved for priority process dispatch.")

	err = viper.BindPFlag("scheduler.priority-workers", flagSet.Lookup("priority-workers"))
	if err != nil {
		return err
	}

	flagSet.IntP("normal-workers", "", 0, "OS threads for ordinary process dispatch; 0 selects a CPU-based default.")

	err = viper.BindPFlag("scheduler.normal-workers", flagSet.Lookup("normal-workers"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")

	err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log output shape: text or json.")

	err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to the log file; empty writes to stderr instead of rotating a file on disk.")

	err = viper.BindPFlag("logging.filename", flagSet.Lookup("log-file"))
	if err != nil {
		return err
	}

	flagSet.IntP("log-max-file-size-mb", "", 128, "Log file size, in MiB, at which it is rotated.")

	err = viper.BindPFlag("logging.log-rotate.max-file-size-mb", flagSet.Lookup("log-max-file-size-mb"))
	if err != nil {
		return err
	}

	flagSet.IntP("log-backup-file-count", "", 0, "Number of rotated log files to keep; 0 keeps all of them.")

	err = viper.BindPFlag("logging.log-rotate.backup-file-count", flagSet.Lookup("log-backup-file-count"))
	if err != nil {
		return err
	}

	flagSet.BoolP("log-compress", "", false, "Gzip rotated log files.")

	err = viper.BindPFlag("logging.log-rotate.compress", flagSet.Lookup("log-compress"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug_invariants", "", false, "Exit when internal allocator invariants are violated.")

	err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug_invariants"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug_mutex", "", false, "Log at TRACE severity; useful when chasing a scheduling or locking bug.")

	err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug_mutex"))
	if err != nil {
		return err
	}

	return nil
}
