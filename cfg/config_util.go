// Copyright 2024 Google LLC
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

import "runtime"

// DefaultSchedulerWorkers returns the normal-worker count used when the
// user hasn't configured either worker pool: one goroutine-backed OS
// thread per logical CPU.
func DefaultSchedulerWorkers() int {
	return runtime.NumCPU()
}

// IsLoggingToFile reports whether config is set up to rotate a log file on
// disk rather than write to stderr.
func IsLoggingToFile(config *Config) bool {
	return config.Logging.Filename != ""
}
