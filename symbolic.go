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
	"sort"
	"strings"
)

// symbolic.go is the SMT half of the dual condition representation (4.1,
// 9. "Dual BDD/SMT representation"). No Go SMT binding is available to
// this module (DESIGN.md records the search); SMTExpr is instead a small
// boolean expression tree that is introspectable and human-readable, which
// is the property downstream consumers of this side actually need. It is
// deliberately not a decision procedure: SMTEquiv (used only by
// tests, 8. TESTABLE PROPERTIES #1/#7) brute-forces equivalence over the
// atoms the two formulas mention, which is adequate for the atom counts a
// single directory's makefile produces.

// SMTExpr is a boolean formula over named atoms.
type SMTExpr interface {
	String() string
	eval(assign map[string]bool) bool
	atoms(set map[string]bool)
}

type smtConst bool

func (c smtConst) String() string {
	if c {
		return "1"
	}
	return "0"
}
func (c smtConst) eval(map[string]bool) bool { return bool(c) }
func (c smtConst) atoms(map[string]bool)     {}

type smtAtom string

func (a smtAtom) String() string                { return string(a) }
func (a smtAtom) eval(assign map[string]bool) bool { return assign[string(a)] }
func (a smtAtom) atoms(set map[string]bool)     { set[string(a)] = true }

type smtNot struct{ x SMTExpr }

func (n smtNot) String() string { return "!" + parenize(n.x) }
func (n smtNot) eval(assign map[string]bool) bool {
	return !n.x.eval(assign)
}
func (n smtNot) atoms(set map[string]bool) { n.x.atoms(set) }

type smtAnd struct{ x, y SMTExpr }

func (a smtAnd) String() string { return parenize(a.x) + " && " + parenize(a.y) }
func (a smtAnd) eval(assign map[string]bool) bool {
	return a.x.eval(assign) && a.y.eval(assign)
}
func (a smtAnd) atoms(set map[string]bool) { a.x.atoms(set); a.y.atoms(set) }

type smtOr struct{ x, y SMTExpr }

func (o smtOr) String() string { return parenize(o.x) + " || " + parenize(o.y) }
func (o smtOr) eval(assign map[string]bool) bool {
	return o.x.eval(assign) || o.y.eval(assign)
}
func (o smtOr) atoms(set map[string]bool) { o.x.atoms(set); o.y.atoms(set) }

func parenize(x SMTExpr) string {
	switch x.(type) {
	case smtAnd, smtOr:
		return "(" + x.String() + ")"
	}
	return x.String()
}

// SMTTrue and SMTFalse are the boolean constants.
var (
	SMTTrue  SMTExpr = smtConst(true)
	SMTFalse SMTExpr = smtConst(false)
)

// SMTAnd conjoins x and y, folding the constant cases away so formulas
// stay readable (mirrors the z3.simplify calls the original evaluator
// relies on).
func SMTAnd(x, y SMTExpr) SMTExpr {
	if x == SMTFalse || y == SMTFalse {
		return SMTFalse
	}
	if x == SMTTrue {
		return y
	}
	if y == SMTTrue {
		return x
	}
	return smtAnd{x, y}
}

// SMTOr disjoins x and y with the same constant folding as SMTAnd.
func SMTOr(x, y SMTExpr) SMTExpr {
	if x == SMTTrue || y == SMTTrue {
		return SMTTrue
	}
	if x == SMTFalse {
		return y
	}
	if y == SMTFalse {
		return x
	}
	return smtOr{x, y}
}

// SMTNot negates x.
func SMTNot(x SMTExpr) SMTExpr {
	if x == SMTTrue {
		return SMTFalse
	}
	if x == SMTFalse {
		return SMTTrue
	}
	if n, ok := x.(smtNot); ok {
		return n.x
	}
	return smtNot{x}
}

// SMTAtomNames returns the sorted, de-duplicated set of atom names x
// mentions.
func SMTAtomNames(x SMTExpr) []string {
	set := make(map[string]bool)
	x.atoms(set)
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SMTEquiv brute-force checks whether x and y denote the same boolean
// function by enumerating every assignment of their combined atoms. Used
// only by tests (8. TESTABLE PROPERTIES); not a general decision
// procedure and not used by the production evaluator.
func SMTEquiv(x, y SMTExpr) bool {
	set := make(map[string]bool)
	x.atoms(set)
	y.atoms(set)
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	total := 1 << uint(len(names))
	for mask := 0; mask < total; mask++ {
		assign := make(map[string]bool, len(names))
		for i, n := range names {
			assign[n] = mask&(1<<uint(i)) != 0
		}
		if x.eval(assign) != y.eval(assign) {
			return false
		}
	}
	return true
}

// SMTDebugString renders x with String, trimmed of surrounding
// whitespace, for test failure messages. Parentheses are kept as String
// emits them.
func SMTDebugString(x SMTExpr) string {
	return strings.TrimSpace(x.String())
}
