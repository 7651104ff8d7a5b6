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

import (
	"os"
	"path/filepath"

	"github.com/golang/glog"
)

// driver.go is C8: the per-directory driver. It owns the lifecycle the
// rest of the evaluator assumes (5. CONCURRENCY & RESOURCE MODEL) — one
// fresh Algebra/Store/Expander/Interp per directory, disposed before the
// next directory starts, directories processed serially in FIFO order.

// Driver walks a queue of directories (and/or bare makefile paths),
// evaluating each one and folding its artifacts into a shared Results.
type Driver struct {
	cfg     *Config
	results *Results
}

// NewDriver creates a driver against cfg, accumulating into a fresh
// Results aggregate.
func NewDriver(cfg *Config) *Driver {
	return &Driver{cfg: cfg, results: NewResults()}
}

// Results returns the aggregate accumulated so far.
func (d *Driver) Results() *Results { return d.results }

// Run processes every path in roots (6. "Inputs: file paths to makefiles
// or directories"), recursing into subdirectories the collector finds
// when cfg.DoRecursive is set.
func (d *Driver) Run(roots []string) error {
	queue := append([]string{}, roots...)
	seen := make(map[string]bool)
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		if seen[dir] {
			continue
		}
		seen[dir] = true
		subdirs, err := d.processOne(dir)
		if err != nil {
			return err
		}
		if d.cfg.DoRecursive {
			queue = append(queue, subdirs...)
		}
	}
	return nil
}

// processOne locates and parses the makefile at path (a directory or a
// bare file), evaluates it under T, runs the collector, and disposes the
// directory's Algebra before returning (4.9, 5).
func (d *Driver) processOne(path string) ([]string, error) {
	makefile, dir, err := locateMakefile(path)
	if err != nil {
		return nil, err
	}
	if abs, absErr := filepath.Abs(dir); absErr == nil {
		dir = abs
	}
	data, err := os.ReadFile(makefile)
	if err != nil {
		return nil, &MissingMakefileError{Dir: dir}
	}

	alg := NewAlgebra()
	defer alg.Dispose()
	store := NewStore(alg)
	ex := NewExpander(alg, store, d.cfg)
	in := NewInterp(alg, store, ex, dir)

	for _, nv := range d.cfg.DefineAssignments() {
		store.Assign(nv[0], Recursive, nv[1], alg.T())
	}

	stmts := ParseMakefile(string(data), makefile)
	in.Run(stmts, alg.T())

	if d.cfg.DoTable {
		glog.Infof("%s symbol table:\n%s", dir, store.DumpTable())
	}

	coll := NewCollector(alg, store, ex, dir, d.results)
	subdirs := coll.Collect()

	for _, name := range ex.UndefinedNames() {
		glog.V(1).Infof("%s: variable %q referenced but never defined", dir, name)
	}

	return subdirs, nil
}

// locateMakefile resolves path to a directory and the makefile within it
// to parse, preferring Kbuild over Makefile (4.9). A path naming a file
// directly is used as-is, with its containing directory as the base for
// relative includes and disk-existence checks.
func locateMakefile(path string) (makefile, dir string, err error) {
	fi, statErr := os.Stat(path)
	if statErr != nil {
		return "", "", &MissingMakefileError{Dir: path}
	}
	if !fi.IsDir() {
		return path, filepath.Dir(path), nil
	}
	for _, name := range []string{"Kbuild", "Makefile"} {
		candidate := filepath.Join(path, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, path, nil
		}
	}
	return "", "", &MissingMakefileError{Dir: path}
}
