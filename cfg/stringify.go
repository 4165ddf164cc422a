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

import "gopkg.in/yaml.v3"

// String renders the config as YAML, for the `stats` command and startup
// logging. Falls back to a terse error marker rather than panicking, since
// this is a diagnostic path and must never be the reason a command fails.
func (c Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "<unrenderable config: " + err.Error() + ">"
	}
	return string(out)
}
