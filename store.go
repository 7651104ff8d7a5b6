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

// store.go is C4: the variable store. Each variable name maps to a
// Multiverse of RHS text (unexpanded for recursive variables, expanded
// for simple ones, 4.5) plus a Flavor, mirroring the Var/Flavor split in
// the teacher's var.go but keyed by condition instead of by a single
// assignment.
//
// `+=` is the case that matters for scale: appending under a condition
// naively multiplies every existing universe by the new one. Kbuild trees
// append to obj-y-style variables hundreds of times per directory, so an
// EquivSet defers that Cartesian product: repeated appends are recorded
// as named equivalence classes (`<var>_EQUIV<n>`) instead of being
// materialized into the base variable's Multiverse until something
// actually needs the expanded value (4.5, "+= optimization").

// Flavor distinguishes recursively-expanded variables (`=`) from simple,
// already-expanded ones (`:=`), matching make's two variable flavors.
type Flavor int

const (
	// Recursive variables store their RHS text unexpanded; expansion
	// happens every time the variable is read.
	Recursive Flavor = iota
	// Simple variables are expanded once, at assignment time.
	Simple
)

func (f Flavor) String() string {
	if f == Simple {
		return "simple"
	}
	return "recursive"
}

// VarEntry is one variable's state: its flavor and the Multiverse of
// values (or unexpanded text, for Recursive) it can hold.
type VarEntry struct {
	Flavor Flavor
	MV     Multiverse
	// Equiv lists the names of equivalence-class variables chained onto
	// this one by successive `+=` (4.5). They are partitioned by the
	// flavor active at the time of the append, since a `+=` under a
	// Simple flavor expands immediately while one under Recursive does
	// not.
	Equiv []string
}

// Store holds every variable known so far in one directory's evaluation,
// keyed by name. Not safe for concurrent use (5. CONCURRENCY & RESOURCE
// MODEL): one Store per directory, discarded with it.
type Store struct {
	alg     *Algebra
	vars    map[string]*VarEntry
	order   []string
	equivN  map[string]int
}

// NewStore creates an empty variable store against alg.
func NewStore(alg *Algebra) *Store {
	return &Store{alg: alg, vars: make(map[string]*VarEntry), equivN: make(map[string]int)}
}

// Lookup returns the entry for name and whether it is defined.
func (s *Store) Lookup(name string) (*VarEntry, bool) {
	e, ok := s.vars[name]
	return e, ok
}

// IsDefined reports whether name has ever been assigned, under any
// condition (the expander's variable lookup and the collector's
// composite checks consult this).
func (s *Store) IsDefined(name string) bool {
	_, ok := s.vars[name]
	return ok
}

// Names returns every variable name defined so far, in first-assignment
// order.
func (s *Store) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Store) ensure(name string, flavor Flavor) *VarEntry {
	e, ok := s.vars[name]
	if !ok {
		e = &VarEntry{Flavor: flavor}
		s.vars[name] = e
		s.order = append(s.order, name)
	}
	return e
}

// weaken ANDs ¬P into every CondDef's condition across name's own entry
// and its whole equivalence set, then prunes dead universes (4.5,
// "update(entry) = (value, cond ∧ ¬P, flavor)"). A fresh assignment under
// P must shadow every prior universe under P, no matter which alias
// carries it.
func (s *Store) weaken(e *VarEntry, notP Condition) {
	e.MV = weakenMV(s.alg, e.MV, notP)
	var live []string
	for _, aliasName := range e.Equiv {
		alias := s.vars[aliasName]
		alias.MV = weakenMV(s.alg, alias.MV, notP)
		if len(alias.MV) > 0 {
			live = append(live, aliasName)
		}
	}
	e.Equiv = live
}

func weakenMV(alg *Algebra, mv Multiverse, notP Condition) Multiverse {
	out := make(Multiverse, 0, len(mv))
	for _, cd := range mv {
		cd.Cond = alg.And(cd.Cond, notP)
		if alg.IsFalse(cd.Cond) {
			continue
		}
		out = append(out, cd)
	}
	return out
}

// Assign implements `=` and `:=` (4.5). text is the literal or expanded
// RHS (the caller decides which, based on token) and cond is the
// condition under which this assignment executes: every prior universe
// under cond, across the whole equivalence set, is shadowed, and the new
// definition is appended to the canonical entry.
func (s *Store) Assign(name string, flavor Flavor, text string, cond Condition) {
	e := s.ensure(name, flavor)
	s.weaken(e, s.alg.Not(cond))
	e.Flavor = flavor
	e.MV = append(e.MV, CondDef{Cond: cond, ZCond: s.alg.F(), Value: text}).Prune(s.alg).Dedup(s.alg)
}

// AssignIfUndefined implements `?=` (4.5): text is assigned only in
// universes where name was not already defined.
func (s *Store) AssignIfUndefined(name string, flavor Flavor, text string, cond Condition) {
	e, ok := s.vars[name]
	if !ok {
		s.Assign(name, flavor, text, cond)
		return
	}
	already := s.alg.F()
	for _, entry := range s.Entries(name) {
		already = s.alg.Or(already, entry.MV.PresenceCondition(s.alg))
	}
	newCond := s.alg.And(cond, s.alg.Not(already))
	if s.alg.IsFalse(newCond) {
		return
	}
	e.MV = append(e.MV, CondDef{Cond: newCond, ZCond: s.alg.F(), Value: text}).Prune(s.alg).Dedup(s.alg)
}

// Append implements `+=` (4.5). Rather than materializing the Cartesian
// product of the existing entries against the new text, it allocates a
// fresh equivalence-class variable holding just the appended text under
// cond and chains it onto e.Equiv. A read iterates the whole equivalence
// set and concatenates every entry's CondDefs (Entries, below) instead of
// string-joining them pairwise, which is exactly what avoids the
// Cartesian blowup naive append would cause (4.5, 9. "+= optimization").
//
// The spec allows one alias to mix a RECURSIVE sub-entry (for prior
// recursively-flavored coverage) and SIMPLE sub-entries (for prior
// simply-flavored coverage) under a single generated name; this store
// instead allocates up to two sibling aliases, one per flavor, which is
// semantically identical since both end up in the same equivalence set.
func (s *Store) Append(name string, flavor Flavor, text string, cond Condition) {
	e, ok := s.vars[name]
	if !ok {
		// `+=` to an undefined variable behaves like a fresh assignment,
		// taking on the flavor of this append (make's actual behavior).
		s.Assign(name, flavor, text, cond)
		return
	}
	var recursively, simply Condition
	recursively, simply = s.alg.F(), s.alg.F()
	for _, cd := range e.MV {
		if e.Flavor == Recursive {
			recursively = s.alg.Or(recursively, cd.Cond)
		} else {
			simply = s.alg.Or(simply, cd.Cond)
		}
	}
	for _, aliasName := range e.Equiv {
		alias := s.vars[aliasName]
		for _, cd := range alias.MV {
			if alias.Flavor == Recursive {
				recursively = s.alg.Or(recursively, cd.Cond)
			} else {
				simply = s.alg.Or(simply, cd.Cond)
			}
		}
	}
	if !s.alg.IsFalse(recursively) || len(e.MV) == 0 && len(e.Equiv) == 0 {
		s.addAppendAlias(e, name, Recursive, text, cond)
	}
	if !s.alg.IsFalse(simply) {
		s.addAppendAlias(e, name, Simple, text, cond)
	}
}

func (s *Store) addAppendAlias(e *VarEntry, name string, flavor Flavor, text string, cond Condition) {
	s.equivN[name]++
	aliasName := equivName(name, s.equivN[name])
	alias := s.ensure(aliasName, flavor)
	alias.MV = Multiverse{{Cond: cond, ZCond: s.alg.F(), Value: text}}
	e.Equiv = append(e.Equiv, aliasName)
}

func equivName(base string, n int) string {
	return base + "_EQUIV" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// StoredEntry is one VarEntry's flavor paired with its raw Multiverse
// (unexpanded text for Recursive, already-expanded value(s) for Simple).
type StoredEntry struct {
	Flavor Flavor
	MV     Multiverse
}

// Entries returns every VarEntry for name across its full equivalence set
// (3. "all reads of name must iterate the full equivalence set"), in the
// order they were created: the base entry first, then each `+=` alias.
func (s *Store) Entries(name string) []StoredEntry {
	e, ok := s.vars[name]
	if !ok {
		return nil
	}
	out := []StoredEntry{{Flavor: e.Flavor, MV: e.MV}}
	for _, aliasName := range e.Equiv {
		alias := s.vars[aliasName]
		out = append(out, StoredEntry{Flavor: alias.Flavor, MV: alias.MV})
	}
	return out
}

// Flavor returns the flavor of name, defaulting to Recursive if name is
// undefined (make's default for a never-assigned variable referenced in
// an expansion).
func (s *Store) Flavor(name string) Flavor {
	if e, ok := s.vars[name]; ok {
		return e.Flavor
	}
	return Recursive
}

// String renders one VarEntry as "flavor: value [cond] | value [cond] ..."
// for the do_table pretty-printer, mirroring the teacher's per-variable
// String() methods.
func (e *VarEntry) String() string {
	s := e.Flavor.String() + ": "
	for i, cd := range e.MV {
		if i > 0 {
			s += " | "
		}
		s += cd.Value + " [" + cd.Cond.String() + "]"
	}
	return s
}

// DumpTable renders every variable's name and entry (base plus
// equivalence-set aliases) in first-assignment order, for the
// `do_table` flag (6. "Configuration: do_table").
func (s *Store) DumpTable() string {
	var out string
	for _, name := range s.order {
		e := s.vars[name]
		out += name + " = " + e.String() + "\n"
	}
	return out
}
