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

// cond.go is the glue for C1: it pairs the BDD and SMT halves into one
// Condition value and keeps them in lockstep (4.1, "Dual BDD/SMT
// representation" — every condition operation touches both sides
// together so they can never drift apart).

// Condition is a presence condition: a boolean formula over named atoms,
// represented twice (BDD for canonical equality/dedup, SMT-style tree for
// human-readable export). The zero value is not valid; use Algebra's
// T/F/NewAtom/And/Or/Not.
type Condition struct {
	bdd *bddNode
	smt SMTExpr
}

// String renders the SMT side, which is the representation meant for
// humans (log lines, presence_conditions output, 4.7).
func (c Condition) String() string {
	return c.smt.String()
}

// CondError reports a problem forming or combining a condition, e.g. an
// atom name that cannot be mapped to a boolean.
type CondError struct {
	Op  string
	Msg string
}

func (e *CondError) Error() string {
	return "cond: " + e.Op + ": " + e.Msg
}

// Algebra owns one BDD manager and one atom registry; it is the entry
// point for building and combining Conditions. One Algebra is created per
// directory and discarded with it (5. CONCURRENCY & RESOURCE MODEL).
type Algebra struct {
	mgr *bddManager
	reg *Registry
}

// NewAlgebra creates an empty condition algebra.
func NewAlgebra() *Algebra {
	return &Algebra{mgr: newBDDManager(), reg: newRegistry()}
}

// T returns the always-true condition.
func (a *Algebra) T() Condition { return Condition{bdd: bddTrue, smt: SMTTrue} }

// F returns the always-false condition.
func (a *Algebra) F() Condition { return Condition{bdd: bddFalse, smt: SMTFalse} }

// NewAtom returns the condition that is exactly the named boolean atom
// being true, creating the atom in the registry if this is the first
// reference to it.
func (a *Algebra) NewAtom(name string) Condition {
	v := a.reg.GetOrCreate(name)
	return Condition{bdd: a.mgr.ithVar(v.idx), smt: smtAtom(name)}
}

// And returns the conjunction of x and y.
func (a *Algebra) And(x, y Condition) Condition {
	return Condition{bdd: a.mgr.and(x.bdd, y.bdd), smt: SMTAnd(x.smt, y.smt)}
}

// Or returns the disjunction of x and y.
func (a *Algebra) Or(x, y Condition) Condition {
	return Condition{bdd: a.mgr.or(x.bdd, y.bdd), smt: SMTOr(x.smt, y.smt)}
}

// Not returns the negation of x.
func (a *Algebra) Not(x Condition) Condition {
	return Condition{bdd: a.mgr.not(x.bdd), smt: SMTNot(x.smt)}
}

// AndAll conjoins a slice of conditions, returning T() for an empty slice.
func (a *Algebra) AndAll(xs []Condition) Condition {
	r := a.T()
	for _, x := range xs {
		r = a.And(r, x)
	}
	return r
}

// OrAll disjoins a slice of conditions, returning F() for an empty slice.
func (a *Algebra) OrAll(xs []Condition) Condition {
	r := a.F()
	for _, x := range xs {
		r = a.Or(r, x)
	}
	return r
}

// Equal reports whether x and y are the same boolean function. The BDD
// side makes this exact and cheap (canonical form, pointer comparison),
// which is the entire reason this evaluator keeps a BDD at all (8.
// TESTABLE PROPERTIES #1, #2).
func (a *Algebra) Equal(x, y Condition) bool {
	return x.bdd == y.bdd
}

// IsFalse reports whether x is unsatisfiable.
func (a *Algebra) IsFalse(x Condition) bool {
	return x.bdd == bddFalse
}

// IsTrue reports whether x is a tautology.
func (a *Algebra) IsTrue(x Condition) bool {
	return x.bdd == bddTrue
}

// CNF renders x as a disjunction of conjunctions of (possibly negated)
// atom names, one conjunction per satisfying BDD path (4.1, "CNF export").
// Despite the name (kept for continuity with the evaluator this was
// derived from) this is a DNF-shaped minterm enumeration, not a true CNF.
func (a *Algebra) CNF(x Condition) string {
	paths := a.mgr.minterms(x.bdd)
	if len(paths) == 0 {
		return "0"
	}
	clauses := make([]string, 0, len(paths))
	for _, path := range paths {
		if len(path) == 0 {
			clauses = append(clauses, "1")
			continue
		}
		lits := make([]string, len(path))
		for i, lit := range path {
			name := a.reg.ByIndex(lit.varIdx).Name
			if lit.val {
				lits[i] = name
			} else {
				lits[i] = "!" + name
			}
		}
		clauses = append(clauses, "("+strings.Join(lits, " && ")+")")
	}
	return strings.Join(clauses, " || ")
}

// Registry exposes the atom registry backing this algebra, for callers
// that need to enumerate known atoms (e.g. presence-condition reporting).
func (a *Algebra) Registry() *Registry { return a.reg }

// Dispose releases the BDD manager's unique and apply-memo tables (5.
// "the BDD manager ... MUST be released after each directory to bound
// memory"). The Algebra must not be used after Dispose.
func (a *Algebra) Dispose() {
	a.mgr = nil
	a.reg = nil
}
