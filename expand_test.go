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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolveConfigBoolean covers scenario S1: under DoBooleanConfigs, a
// CONFIG_* reference has exactly two universes, y and undefined.
func TestResolveConfigBoolean(t *testing.T) {
	alg := NewAlgebra()
	store := NewStore(alg)
	ex := NewExpander(alg, store, &Config{DoBooleanConfigs: true})

	mv := ex.ResolveVariable("CONFIG_FOO")
	values := mv.Values()
	sort.Strings(values)
	assert.Equal(t, []string{Undefined, "y"}, values)
}

// TestResolveConfigTristate covers scenario S2: by default, a CONFIG_*
// reference has three mutually-exclusive universes: y, m, undefined.
func TestResolveConfigTristate(t *testing.T) {
	alg := NewAlgebra()
	store := NewStore(alg)
	ex := NewExpander(alg, store, &Config{})

	mv := ex.ResolveVariable("CONFIG_FOO")
	values := mv.Values()
	sort.Strings(values)
	assert.Equal(t, []string{Undefined, "m", "y"}, values)

	// The three universes are pairwise mutually exclusive: no two
	// conditions can hold simultaneously (9.(d)).
	for i, cd1 := range mv {
		for j, cd2 := range mv {
			if i == j {
				continue
			}
			assert.True(t, alg.IsFalse(alg.And(cd1.Cond, cd2.Cond)),
				"universes %q and %q should be mutually exclusive", cd1.Value, cd2.Value)
		}
	}
}

// TestSubstFunction covers scenario S5: $(subst from,to,text) replaces
// every occurrence of from with to.
func TestSubstFunction(t *testing.T) {
	alg := NewAlgebra()
	store := NewStore(alg)
	ex := NewExpander(alg, store, &Config{})

	e := ParseExpansion("$(subst .o,.c,foo.o bar.o)")
	mv := ex.Expand(e)
	require.Len(t, mv, 1)
	assert.Equal(t, "foo.c bar.c", mv[0].Value)
}

// TestPatsubstFunction covers the pattern-substitution sibling of S5.
func TestPatsubstFunction(t *testing.T) {
	alg := NewAlgebra()
	store := NewStore(alg)
	ex := NewExpander(alg, store, &Config{})

	e := ParseExpansion("$(patsubst %.o,%.c,foo.o bar.o)")
	mv := ex.Expand(e)
	require.Len(t, mv, 1)
	assert.Equal(t, "foo.c bar.c", mv[0].Value)
}

// TestUndefinedReferenceIsIdempotent checks testable property #6:
// referencing the same undefined name twice records it once.
func TestUndefinedReferenceIsIdempotent(t *testing.T) {
	alg := NewAlgebra()
	store := NewStore(alg)
	ex := NewExpander(alg, store, &Config{})

	ex.ResolveVariable("NEVER_DEFINED")
	ex.ResolveVariable("NEVER_DEFINED")

	names := ex.UndefinedNames()
	assert.Equal(t, []string{"NEVER_DEFINED"}, names)
}

// TestVariableRefOfStoredValue exercises the otherwise-branch of
// resolveVariable: a defined, recursively-flavored variable is
// re-expanded on every read.
func TestVariableRefOfStoredValue(t *testing.T) {
	alg := NewAlgebra()
	store := NewStore(alg)
	ex := NewExpander(alg, store, &Config{})

	store.Assign("FOO", Recursive, "bar", alg.T())
	mv := ex.VariableRef(ParseExpansion("FOO"))
	require.Len(t, mv, 1)
	assert.Equal(t, "bar", mv[0].Value)
}
