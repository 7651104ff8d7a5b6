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
	"regexp"
	"strings"

	"github.com/golang/glog"
)

// collect.go is C7: the artifact collector. After C6 has populated the
// store for one directory, Collect walks a handful of seed variables to
// a fixed point (4.8), resolving composites and subdirectories, then
// folds everything into the shared Results aggregate (3. "Results
// aggregate").

// Results is the aggregate the driver (C8) accumulates across every
// directory it visits (3. DATA MODEL).
type Results struct {
	CompilationUnits   map[string]bool
	LibraryUnits       map[string]bool
	Composites         map[string]bool
	HostprogUnits      map[string]bool
	HostprogComposites map[string]bool
	UnconfigurableUnits map[string]bool
	CleanFiles         map[string]bool
	// PresenceConditions maps an absolute artifact path to the SMT
	// formula describing the configurations under which it is built.
	PresenceConditions map[string]SMTExpr
}

// NewResults creates an empty Results aggregate.
func NewResults() *Results {
	return &Results{
		CompilationUnits:    make(map[string]bool),
		LibraryUnits:        make(map[string]bool),
		Composites:          make(map[string]bool),
		HostprogUnits:       make(map[string]bool),
		HostprogComposites:  make(map[string]bool),
		UnconfigurableUnits: make(map[string]bool),
		CleanFiles:          make(map[string]bool),
		PresenceConditions:  make(map[string]SMTExpr),
	}
}

func (r *Results) addPresence(path string, formula SMTExpr) {
	if existing, ok := r.PresenceConditions[path]; ok {
		r.PresenceConditions[path] = SMTOr(existing, formula)
		return
	}
	r.PresenceConditions[path] = formula
}

// Collector runs the fixed-point seed resolution of 4.8 against one
// directory's populated Store/Expander, accumulating into a shared
// Results.
type Collector struct {
	alg     *Algebra
	store   *Store
	ex      *Expander
	dir     string
	results *Results

	subdirs map[string]bool
}

// NewCollector builds a collector for dir's already-processed store.
func NewCollector(alg *Algebra, store *Store, ex *Expander, dir string, results *Results) *Collector {
	return &Collector{alg: alg, store: store, ex: ex, dir: dir, results: results, subdirs: make(map[string]bool)}
}

// Collect runs every pass of 4.8 and returns the discovered subdirectory
// paths, for the driver (C8) to recurse into.
func (c *Collector) Collect() []string {
	c.collectUnits(seedNames("obj-y", "obj-m", "core-y", "core-m", "drivers-y", "drivers-m",
		"net-y", "net-m", "libs-y", "libs-m", "head-y", "head-m"),
		c.results.CompilationUnits, c.results.Composites)

	for _, u := range c.splitDefs("subdir-y") {
		c.subdirs[filepath.Join(c.dir, u)] = true
	}
	for _, u := range c.splitDefs("subdir-m") {
		c.subdirs[filepath.Join(c.dir, u)] = true
	}

	c.collectUnits(seedNames("lib-y", "lib-m"), c.results.LibraryUnits, c.results.Composites)

	c.collectHostprogs()

	for _, u := range c.splitDefs("clean-files") {
		c.results.CleanFiles[filepath.Join(c.dir, u)] = true
	}

	c.collectUnconfigurable()

	c.checkUnexpanded(c.results.CompilationUnits, "compilation unit")
	c.checkUnexpanded(subdirSet(c.subdirs), "subdirectory")
	for _, n := range c.store.Names() {
		if containsUnexpanded(n) {
			glog.Warningf("%s: unexpanded variable name %q", c.dir, n)
		}
	}

	c.collectPresenceConditions()

	subdirs := make([]string, 0, len(c.subdirs))
	for d := range c.subdirs {
		subdirs = append(subdirs, d)
	}
	return subdirs
}

func seedNames(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func subdirSet(m map[string]bool) map[string]bool { return m }

// splitDefs returns the whitespace-split, expanded values of name (the
// union across every universe, since the collector only cares which
// tokens can ever appear, not the condition under which each does — the
// condition is recovered separately in collectPresenceConditions).
func (c *Collector) splitDefs(name string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, cd := range c.ex.ResolveVariable(name) {
		if IsUndefined(cd.Value) {
			continue
		}
		for _, tok := range splitSpaces(cd.Value) {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}

// collectUnits implements collect_units/collect_defs (4.8 step 1-3): a
// fixed-point walk over pending, classifying each whitespace-token as a
// composite, a compilation/library unit, or a subdirectory.
func (c *Collector) collectUnits(pending map[string]bool, units map[string]bool, composites map[string]bool) {
	processed := make(map[string]bool)
	queue := make([]string, 0, len(pending))
	for n := range pending {
		queue = append(queue, n)
	}
	for len(queue) > 0 {
		name := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if processed[name] {
			continue
		}
		processed[name] = true
		for _, elem := range c.splitDefs(name) {
			c.collectDef(elem, units, composites, processed, &queue)
		}
	}
}

func (c *Collector) collectDef(elem string, units, composites map[string]bool, processed map[string]bool, queue *[]string) {
	unitName := filepath.Join(c.dir, elem)
	switch {
	case strings.HasSuffix(elem, ".o") && !units[unitName]:
		stem := elem[:len(elem)-len(".o")]
		objsVar, yVar := stem+"-objs", stem+"-y"
		hasComposite := c.store.IsDefined(objsVar) || c.store.IsDefined(yVar)
		if hasComposite {
			if !processed[objsVar] && !processed[yVar] {
				composites[unitName] = true
				*queue = append(*queue, objsVar, yVar)
			}
			stemPath := filepath.Join(c.dir, stem)
			if fileExists(stemPath+".c") || fileExists(stemPath+".S") {
				units[unitName] = true
			}
		} else {
			units[unitName] = true
		}
	case strings.HasSuffix(elem, "/"):
		newDir := elem
		if !filepath.IsAbs(newDir) {
			newDir = filepath.Join(c.dir, newDir)
		}
		if dirExists(newDir) {
			c.subdirs[newDir] = true
		}
	}
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// collectHostprogs implements 4.8 step 4. Host-program composites are a
// documented hard gap (9.(c), "Host-program composites cause a hard
// NotImplemented when non-empty"): this evaluator logs and skips them
// rather than aborting the whole directory, which is the graceful-
// degradation policy 7's propagation policy calls for elsewhere.
func (c *Collector) collectHostprogs() {
	var seen map[string]bool = make(map[string]bool)
	for _, v := range []string{"hostprogs-y", "hostprogs-m", "host-progs", "always"} {
		for _, u := range c.splitDefs(v) {
			if seen[u] {
				continue
			}
			seen[u] = true
			compositeName := u + "-objs"
			unitName := filepath.Join(c.dir, u)
			if c.store.IsDefined(compositeName) {
				c.results.HostprogComposites[unitName] = true
				glog.Warningf("%s: host-program composite %q unsupported, skipping", c.dir, u)
			} else {
				c.results.HostprogUnits[unitName] = true
			}
		}
	}
}

// collectUnconfigurable implements 4.8 step 6.
func (c *Collector) collectUnconfigurable() {
	prefixes := map[string]bool{"obj-$": true, "lib-$": true, "hostprogs-$": true}
	for path := range c.results.Composites {
		base := filepath.Base(path)
		base = strings.TrimSuffix(base, ".o")
		prefixes[base+"-$"] = true
	}
	for path := range c.results.HostprogComposites {
		base := filepath.Base(path)
		base = strings.TrimSuffix(base, ".o")
		prefixes[base+"-$"] = true
	}

	pending := make(map[string]bool)
	for _, name := range c.store.Names() {
		for p := range prefixes {
			if strings.HasPrefix(name, p) &&
				!strings.HasSuffix(name, "-") &&
				!strings.HasSuffix(name, "-y") &&
				!strings.HasSuffix(name, "-m") &&
				!strings.HasSuffix(name, "-objs") &&
				name != "host-progs" {
				pending[name] = true
			} else if strings.HasPrefix(name, strings.TrimSuffix(p, "$")) && strings.HasSuffix(name, "-") {
				pending[name] = true
			}
		}
	}

	c.collectUnits(pending, c.results.UnconfigurableUnits, c.results.UnconfigurableUnits)

	for u := range c.results.CompilationUnits {
		delete(c.results.UnconfigurableUnits, u)
	}
	for u := range c.results.LibraryUnits {
		delete(c.results.UnconfigurableUnits, u)
	}
	for u := range c.results.Composites {
		delete(c.results.UnconfigurableUnits, u)
	}
	for u := range c.subdirs {
		delete(c.results.UnconfigurableUnits, u)
	}
}

// collectPresenceConditions implements 4.8 step 7 / get_presence_conditions:
// for each seed variable's equivalence set, for each token each VarEntry
// contributes, accumulate the token's presence condition, recursing into
// composite sub-variables under the conjoined context.
func (c *Collector) collectPresenceConditions() {
	c.getPresenceConditions([]string{"obj-y", "obj-m", "lib-y", "lib-m"}, c.alg.T())
}

func (c *Collector) getPresenceConditions(names []string, ctx Condition) {
	for _, name := range names {
		if !c.store.IsDefined(name) {
			continue
		}
		for _, entry := range c.store.Entries(name) {
			if entry.Flavor == Recursive {
				// Mirror resolveStored: expand each recursive entry's
				// raw text under its own condition before splitting into
				// tokens, rather than splitting the unexpanded text.
				for _, cd := range entry.MV {
					for _, scd := range c.ex.Expand(ParseExpansion(cd.Value)) {
						if IsUndefined(scd.Value) {
							continue
						}
						andCond := c.alg.And(ctx, c.alg.And(cd.Cond, scd.Cond))
						c.accumulateTokens(scd.Value, andCond)
					}
				}
				continue
			}
			for _, cd := range entry.MV {
				if IsUndefined(cd.Value) {
					continue
				}
				andCond := c.alg.And(ctx, cd.Cond)
				c.accumulateTokens(cd.Value, andCond)
			}
		}
	}
}

func (c *Collector) accumulateTokens(value string, andCond Condition) {
	for _, token := range splitSpaces(value) {
		path := filepath.Join(c.dir, token)
		c.results.addPresence(path, andCond.smt)
		if strings.HasSuffix(token, ".o") {
			stem := token[:len(token)-len(".o")]
			objsVar, yVar := stem+"-objs", stem+"-y"
			if c.store.IsDefined(objsVar) || c.store.IsDefined(yVar) {
				c.getPresenceConditions([]string{objsVar, yVar}, andCond)
			}
		}
	}
}

var unexpandedRe = regexp.MustCompile(`\$\(`)

func containsUnexpanded(s string) bool {
	return unexpandedRe.MatchString(s)
}

func (c *Collector) checkUnexpanded(set map[string]bool, desc string) {
	for x := range set {
		if containsUnexpanded(x) {
			glog.Warningf("%s: unexpanded %s %q", c.dir, desc, x)
		}
	}
}
