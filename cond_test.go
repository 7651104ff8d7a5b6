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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// glog starts a background flush daemon on import; it is not a leak
	// introduced by anything under test.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"))
}

// TestDualRepresentationLockstep checks testable property #1: for every
// condition the algebra builds, the BDD and SMT sides denote the same
// boolean function.
func TestDualRepresentationLockstep(t *testing.T) {
	alg := NewAlgebra()
	a := alg.NewAtom("A")
	b := alg.NewAtom("B")

	cases := []Condition{
		alg.And(a, b),
		alg.Or(a, b),
		alg.Not(a),
		alg.And(alg.Or(a, b), alg.Not(b)),
		alg.T(),
		alg.F(),
	}
	for _, c := range cases {
		require.True(t, SMTEquiv(c.smt, c.smt), "formula not even equivalent to itself: %s", c)
		// Evaluate the BDD and the SMT side under every assignment of A
		// and B and check that they agree.
		for _, assign := range allAssignments([]string{"A", "B"}) {
			bddVal := evalBDD(alg, c.bdd, assign)
			smtVal := c.smt.eval(assign)
			assert.Equal(t, bddVal, smtVal, "bdd/smt disagree under %v for %s", assign, c)
		}
	}
}

func evalBDD(alg *Algebra, n *bddNode, assign map[string]bool) bool {
	for n.varIdx >= 0 {
		name := alg.reg.ByIndex(n.varIdx).Name
		if assign[name] {
			n = n.high
		} else {
			n = n.low
		}
	}
	return n.val
}

func allAssignments(names []string) []map[string]bool {
	total := 1 << uint(len(names))
	out := make([]map[string]bool, 0, total)
	for mask := 0; mask < total; mask++ {
		a := make(map[string]bool, len(names))
		for i, n := range names {
			a[n] = mask&(1<<uint(i)) != 0
		}
		out = append(out, a)
	}
	return out
}

// TestEqualIsCanonical checks that BDD equality is exact and
// cheap, so logically-equivalent formulas built via
// different paths compare equal.
func TestEqualIsCanonical(t *testing.T) {
	alg := NewAlgebra()
	a := alg.NewAtom("A")
	b := alg.NewAtom("B")

	x := alg.Or(alg.And(a, b), alg.And(a, alg.Not(b)))
	y := a
	assert.True(t, alg.Equal(x, y), "a&b | a&!b should equal a")
}

// TestCNFRoundTrip checks testable property #7: re-interpreting a
// condition's exported CNF under the same atom assignments reproduces the
// same truth value as the original condition.
func TestCNFRoundTrip(t *testing.T) {
	alg := NewAlgebra()
	a := alg.NewAtom("A")
	b := alg.NewAtom("B")
	c := alg.Or(alg.And(a, alg.Not(b)), alg.And(alg.Not(a), b))

	for _, assign := range allAssignments([]string{"A", "B"}) {
		want := evalBDD(alg, c.bdd, assign)
		got := evalCNFString(alg.CNF(c), assign)
		assert.Equal(t, want, got, "CNF round-trip mismatch under %v", assign)
	}
}

// evalCNFString evaluates the "(lit && lit) || (lit && lit)"-shaped string
// Algebra.CNF produces, against assign, for test purposes only.
func evalCNFString(s string, assign map[string]bool) bool {
	if s == "0" {
		return false
	}
	if s == "1" {
		return true
	}
	for _, clause := range splitTopOr(s) {
		if evalClause(clause, assign) {
			return true
		}
	}
	return false
}

func splitTopOr(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i+4 <= len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && s[i:i+4] == " || " {
			out = append(out, s[start:i])
			i += 3
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func evalClause(clause string, assign map[string]bool) bool {
	clause = clause[1 : len(clause)-1] // strip parens
	if clause == "1" {
		return true
	}
	for _, lit := range splitTopAnd(clause) {
		want := true
		name := lit
		if len(name) > 0 && name[0] == '!' {
			want = false
			name = name[1:]
		}
		if assign[name] != want {
			return false
		}
	}
	return true
}

func splitTopAnd(s string) []string {
	out := []string{}
	cur := ""
	i := 0
	for i < len(s) {
		if i+4 <= len(s) && s[i:i+4] == " && " {
			out = append(out, cur)
			cur = ""
			i += 4
			continue
		}
		cur += string(s[i])
		i++
	}
	out = append(out, cur)
	return out
}
