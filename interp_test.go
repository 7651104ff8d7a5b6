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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestFile writes contents to path, failing the test on error. Shared
// by interp_test.go and collect_test.go for building on-disk fixture
// makefile trees under t.TempDir().
func writeTestFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func newTestInterp(dir string) (*Algebra, *Store, *Expander, *Interp) {
	alg := NewAlgebra()
	store := NewStore(alg)
	ex := NewExpander(alg, store, &Config{})
	in := NewInterp(alg, store, ex, dir)
	return alg, store, ex, in
}

func newTestInterpWithConfig(dir string, cfg *Config) (*Algebra, *Store, *Expander, *Interp) {
	alg := NewAlgebra()
	store := NewStore(alg)
	ex := NewExpander(alg, store, cfg)
	in := NewInterp(alg, store, ex, dir)
	return alg, store, ex, in
}

// TestIfeqHoistsAcrossTristateBranches covers scenario S4: an ifeq test on
// a tristate CONFIG_* variable should partition the three resulting
// universes (y, m, undefined) between the two branches without any
// universe leaking into both.
func TestIfeqHoistsAcrossTristateBranches(t *testing.T) {
	src := `
ifeq ($(CONFIG_FOO),y)
obj-y += foo-enabled.o
else
obj-y += foo-disabled.o
endif
`
	alg, store, _, in := newTestInterp("/kbuild")
	stmts := ParseMakefile(src, "Kbuild")
	in.Run(stmts, alg.T())

	var enabledCond, disabledCond Condition
	enabledCond, disabledCond = alg.F(), alg.F()
	for _, entry := range store.Entries("obj-y") {
		for _, cd := range entry.MV {
			switch cd.Value {
			case "foo-enabled.o":
				enabledCond = alg.Or(enabledCond, cd.Cond)
			case "foo-disabled.o":
				disabledCond = alg.Or(disabledCond, cd.Cond)
			}
		}
	}
	require.False(t, alg.IsFalse(enabledCond))
	require.False(t, alg.IsFalse(disabledCond))
	assert.True(t, alg.IsFalse(alg.And(enabledCond, disabledCond)),
		"enabled and disabled branches must be mutually exclusive")
	assert.True(t, alg.Equal(alg.Or(enabledCond, disabledCond), alg.T()),
		"branches should jointly cover every universe (ifeq is total)")

	yCond := alg.And(alg.And(alg.NewAtom("defined(CONFIG_FOO)"), alg.NewAtom("CONFIG_FOO=y")), alg.Not(alg.NewAtom("CONFIG_FOO=m")))
	assert.True(t, alg.Equal(enabledCond, yCond),
		"enabled branch must be exactly CONFIG_FOO=y, not a broadened over-approximation")
	assert.True(t, alg.Equal(disabledCond, alg.Not(yCond)),
		"disabled branch must be exactly the negation of CONFIG_FOO=y")
}

// TestIfeqBooleanModeExact covers scenario S4 literally: under boolean-mode
// CONFIG_* resolution, ifeq($(CONFIG_X),y) must split into exactly
// CONFIG_X / ¬CONFIG_X, with no fresh comparison atom leaking into either
// side merely because the off-branch resolves to the Undefined sentinel.
func TestIfeqBooleanModeExact(t *testing.T) {
	src := `
ifeq ($(CONFIG_X),y)
obj-y += x.o
else
obj-y += y.o
endif
`
	alg, store, _, in := newTestInterpWithConfig("/kbuild", &Config{DoBooleanConfigs: true})
	stmts := ParseMakefile(src, "Kbuild")
	in.Run(stmts, alg.T())

	var xCond, yCond Condition
	xCond, yCond = alg.F(), alg.F()
	for _, entry := range store.Entries("obj-y") {
		for _, cd := range entry.MV {
			switch cd.Value {
			case "x.o":
				xCond = alg.Or(xCond, cd.Cond)
			case "y.o":
				yCond = alg.Or(yCond, cd.Cond)
			}
		}
	}
	configX := alg.NewAtom("CONFIG_X")
	assert.True(t, alg.Equal(xCond, configX), "x.o must be exactly CONFIG_X")
	assert.True(t, alg.Equal(yCond, alg.Not(configX)), "y.o must be exactly ¬CONFIG_X")
}

// TestIfdefBranchesAreComplementary checks that the two branches of an
// ifdef are exact complements: the else branch runs under the negation
// of the ifdef condition, so the branches never overlap and jointly cover
// every universe.
func TestIfdefBranchesAreComplementary(t *testing.T) {
	src := `
ifdef CONFIG_FOO
obj-y += yes.o
else
obj-y += no.o
endif
`
	alg, store, _, in := newTestInterp("/kbuild")
	stmts := ParseMakefile(src, "Kbuild")
	in.Run(stmts, alg.T())

	var yesCond, noCond Condition
	yesCond, noCond = alg.F(), alg.F()
	for _, entry := range store.Entries("obj-y") {
		for _, cd := range entry.MV {
			if cd.Value == "yes.o" {
				yesCond = alg.Or(yesCond, cd.Cond)
			}
			if cd.Value == "no.o" {
				noCond = alg.Or(noCond, cd.Cond)
			}
		}
	}
	assert.True(t, alg.IsFalse(alg.And(yesCond, noCond)))
	assert.True(t, alg.Equal(alg.Or(yesCond, noCond), alg.T()))
}

// TestIncludeOfMissingFileIsSilentlySkipped covers scenario S6: an
// include directive naming a nonexistent file must not abort evaluation
// or raise an error; it is silently skipped (7).
func TestIncludeOfMissingFileIsSilentlySkipped(t *testing.T) {
	dir := t.TempDir()
	src := `
include ` + filepath.Join(dir, "does-not-exist.mk") + `
obj-y += after-include.o
`
	alg, store, _, in := newTestInterp(dir)
	stmts := ParseMakefile(src, "Kbuild")
	require.NotPanics(t, func() { in.Run(stmts, alg.T()) })

	var sawAfter bool
	for _, entry := range store.Entries("obj-y") {
		for _, cd := range entry.MV {
			if cd.Value == "after-include.o" {
				sawAfter = true
			}
		}
	}
	assert.True(t, sawAfter, "statements after a missing include must still run")
}

// TestIncludeRecursesIntoExistingFile checks the positive side of 4.7:
// an include naming a real file is parsed and its statements run under
// the narrowed condition.
func TestIncludeRecursesIntoExistingFile(t *testing.T) {
	dir := t.TempDir()
	incPath := filepath.Join(dir, "extra.mk")
	writeTestFile(t, incPath, "obj-y += extra.o\n")

	src := "include extra.mk\n"
	alg, store, _, in := newTestInterp(dir)
	stmts := ParseMakefile(src, "Kbuild")
	in.Run(stmts, alg.T())

	var sawExtra bool
	for _, entry := range store.Entries("obj-y") {
		for _, cd := range entry.MV {
			if cd.Value == "extra.o" {
				sawExtra = true
			}
		}
	}
	assert.True(t, sawExtra)
}
