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

// bdd.go is the BDD half of the dual condition representation (4.1, 9.
// "Dual BDD/SMT representation"). No vendored BDD package covers this
// (DESIGN.md notes the search); this is a small reduced, ordered,
// hash-consed BDD with memoized apply, enough for canonical equality and
// minterm enumeration. One bddManager is owned by one Kbuild directory
// instance and discarded with it (5. CONCURRENCY & RESOURCE MODEL).

// bddNode is a node in a reduced ordered BDD. Terminal nodes have
// varIdx == -1. Two structurally identical nodes are always the same
// pointer (hash-consing), so pointer equality is semantic equality.
type bddNode struct {
	varIdx    int
	val       bool // meaningful only when varIdx == -1
	low, high *bddNode
}

var (
	bddTrue  = &bddNode{varIdx: -1, val: true}
	bddFalse = &bddNode{varIdx: -1, val: false}
)

func (n *bddNode) isTerminal() bool { return n.varIdx < 0 }

type bddKey struct {
	v      int
	lo, hi *bddNode
}

type bddPair struct{ a, b *bddNode }

// bddManager owns the unique table and apply memo caches for one BDD
// universe. It is not safe for concurrent use (5. single-threaded model).
type bddManager struct {
	unique   map[bddKey]*bddNode
	andCache map[bddPair]*bddNode
	orCache  map[bddPair]*bddNode
	notCache map[*bddNode]*bddNode
}

func newBDDManager() *bddManager {
	return &bddManager{
		unique:   make(map[bddKey]*bddNode),
		andCache: make(map[bddPair]*bddNode),
		orCache:  make(map[bddPair]*bddNode),
		notCache: make(map[*bddNode]*bddNode),
	}
}

// mkNode applies the BDD reduction rule (skip redundant tests) and hash
// conses the result.
func (m *bddManager) mkNode(v int, lo, hi *bddNode) *bddNode {
	if lo == hi {
		return lo
	}
	k := bddKey{v, lo, hi}
	if n, ok := m.unique[k]; ok {
		return n
	}
	n := &bddNode{varIdx: v, low: lo, high: hi}
	m.unique[k] = n
	return n
}

// ithVar returns the BDD for the boolean variable at index idx.
func (m *bddManager) ithVar(idx int) *bddNode {
	return m.mkNode(idx, bddFalse, bddTrue)
}

func (m *bddManager) not(a *bddNode) *bddNode {
	if a == bddTrue {
		return bddFalse
	}
	if a == bddFalse {
		return bddTrue
	}
	if n, ok := m.notCache[a]; ok {
		return n
	}
	n := m.mkNode(a.varIdx, m.not(a.low), m.not(a.high))
	m.notCache[a] = n
	return n
}

func (m *bddManager) and(a, b *bddNode) *bddNode {
	if a == bddFalse || b == bddFalse {
		return bddFalse
	}
	if a == bddTrue {
		return b
	}
	if b == bddTrue {
		return a
	}
	if a == b {
		return a
	}
	k := bddPair{a, b}
	if n, ok := m.andCache[k]; ok {
		return n
	}
	n := m.apply2(a, b, m.and)
	m.andCache[k] = n
	return n
}

func (m *bddManager) or(a, b *bddNode) *bddNode {
	if a == bddTrue || b == bddTrue {
		return bddTrue
	}
	if a == bddFalse {
		return b
	}
	if b == bddFalse {
		return a
	}
	if a == b {
		return a
	}
	k := bddPair{a, b}
	if n, ok := m.orCache[k]; ok {
		return n
	}
	n := m.apply2(a, b, m.or)
	m.orCache[k] = n
	return n
}

// apply2 implements the Shannon-expansion recursion shared by and/or: pick
// the top variable between a and b, recurse on both cofactors, and combine.
func (m *bddManager) apply2(a, b *bddNode, op func(x, y *bddNode) *bddNode) *bddNode {
	var v int
	var alo, ahi, blo, bhi *bddNode
	switch {
	case a.isTerminal() && b.isTerminal():
		// unreachable: terminal/terminal handled by callers.
		return a
	case b.isTerminal() || a.varIdx < b.varIdx:
		v = a.varIdx
		alo, ahi = a.low, a.high
		blo, bhi = b, b
	case a.isTerminal() || b.varIdx < a.varIdx:
		v = b.varIdx
		alo, ahi = a, a
		blo, bhi = b.low, b.high
	default:
		v = a.varIdx
		alo, ahi = a.low, a.high
		blo, bhi = b.low, b.high
	}
	return m.mkNode(v, op(alo, blo), op(ahi, bhi))
}

// minterm is one path from the root to a True leaf: the (variable index,
// truth value) pairs fixed along that path. Variables skipped by BDD
// reduction are don't-cares and do not appear.
type minterm []litAssign

type litAssign struct {
	varIdx int
	val    bool
}

// minterms enumerates every path to a True leaf (4.1, CNF export).
func (m *bddManager) minterms(n *bddNode) []minterm {
	if n == bddFalse {
		return nil
	}
	if n == bddTrue {
		return []minterm{nil}
	}
	var out []minterm
	for _, path := range m.minterms(n.low) {
		out = append(out, append(minterm{{n.varIdx, false}}, path...))
	}
	for _, path := range m.minterms(n.high) {
		out = append(out, append(minterm{{n.varIdx, true}}, path...))
	}
	return out
}
