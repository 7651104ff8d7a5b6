// Copyright 2024 The Kbuildplus Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kbuild

import "strings"

// config.go holds the options a caller sets before driving the evaluator
// (6. EXTERNAL INTERFACES, "Configuration").
type Config struct {
	// DoBooleanConfigs makes CONFIG_* two-valued (y / undefined) instead
	// of the three-valued tristate (y / m / undefined) mode.
	DoBooleanConfigs bool
	// DoRecursive descends into subdirectories discovered by the
	// collector.
	DoRecursive bool
	// DoTable makes the driver log each directory's symbol table
	// (Store.DumpTable) through glog at info level.
	DoTable bool
	// Define pre-seeds `=` assignments of the form NAME=VALUE as if set
	// at the top of the makefile under condition T.
	Define []string
}

// DefineAssignments parses Config.Define into name/value pairs. Entries
// without '=' are skipped silently; no warning is logged for them.
func (c *Config) DefineAssignments() [][2]string {
	var out [][2]string
	for _, d := range c.Define {
		i := strings.IndexByte(d, '=')
		if i < 0 {
			continue
		}
		out = append(out, [2]string{d[:i], d[i+1:]})
	}
	return out
}
