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

// bvar.go is C2: the registry mapping atom names (CONFIG_FOO=y style
// boolean atoms, or any other named boolean condition a makefile asks
// about) to stable BDD variable indices / SMT atoms, so the same name
// always gets the same bit position for the lifetime of one directory's
// Algebra (5. CONCURRENCY & RESOURCE MODEL).

// BoolVar is one named boolean atom known to an Algebra.
type BoolVar struct {
	Name string
	idx  int
}

// Registry assigns and remembers stable indices for named boolean atoms.
// Not safe for concurrent use.
type Registry struct {
	byName []BoolVar
	index  map[string]int
}

func newRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// GetOrCreate returns the BoolVar for name, creating it with the next
// available index if this is the first time name has been seen.
func (r *Registry) GetOrCreate(name string) BoolVar {
	if i, ok := r.index[name]; ok {
		return r.byName[i]
	}
	v := BoolVar{Name: name, idx: len(r.byName)}
	r.index[name] = v.idx
	r.byName = append(r.byName, v)
	return v
}

// Lookup returns the BoolVar for name and whether it has been created.
func (r *Registry) Lookup(name string) (BoolVar, bool) {
	i, ok := r.index[name]
	if !ok {
		return BoolVar{}, false
	}
	return r.byName[i], true
}

// ByIndex returns the BoolVar previously assigned idx.
func (r *Registry) ByIndex(idx int) BoolVar {
	return r.byName[idx]
}

// Len returns the number of distinct atoms registered so far.
func (r *Registry) Len() int {
	return len(r.byName)
}

// Names returns every atom name registered so far, in assignment order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.byName))
	for i, v := range r.byName {
		names[i] = v.Name
	}
	return names
}
