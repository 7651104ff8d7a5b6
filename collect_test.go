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

// TestCollectCompositeUnit covers scenario S3: a composite
// (`foo-y := a.o b.o`, `obj-y += foo.o`) should register foo.o as a
// composite, not a compilation unit, and register a.o/b.o as compilation
// units in its place.
func TestCollectCompositeUnit(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "Kbuild"), `
obj-y += foo.o
foo-y := a.o b.o
`)
	writeTestFile(t, filepath.Join(dir, "a.c"), "")
	writeTestFile(t, filepath.Join(dir, "b.c"), "")

	d := NewDriver(&Config{})
	require.NoError(t, d.Run([]string{dir}))
	r := d.Results()

	fooPath := filepath.Join(dir, "foo.o")
	aPath := filepath.Join(dir, "a.o")
	bPath := filepath.Join(dir, "b.o")

	assert.True(t, r.Composites[fooPath], "foo.o should be a composite")
	assert.False(t, r.CompilationUnits[fooPath], "foo.o itself is not a compilation unit")
	assert.True(t, r.CompilationUnits[aPath])
	assert.True(t, r.CompilationUnits[bPath])
}

// TestCollectPlainUnit checks the non-composite path: an obj-y token with
// no matching -objs/-y composite variable is a compilation unit directly.
func TestCollectPlainUnit(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "Kbuild"), "obj-y += plain.o\n")

	d := NewDriver(&Config{})
	require.NoError(t, d.Run([]string{dir}))
	r := d.Results()

	assert.True(t, r.CompilationUnits[filepath.Join(dir, "plain.o")])
}

// TestCollectSubdirRecursion checks do_recursive: a subdir-y token naming
// an existing directory is both recorded and, when DoRecursive is set,
// actually visited.
func TestCollectSubdirRecursion(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "child")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeTestFile(t, filepath.Join(root, "Kbuild"), "subdir-y += child/\n")
	writeTestFile(t, filepath.Join(sub, "Kbuild"), "obj-y += leaf.o\n")

	d := NewDriver(&Config{DoRecursive: true})
	require.NoError(t, d.Run([]string{root}))
	r := d.Results()

	assert.True(t, r.CompilationUnits[filepath.Join(sub, "leaf.o")])
}

// TestPresenceConditionAccumulatesForConfigGatedUnit covers the
// presence-condition side of scenario S1: a config-gated obj-$(CONFIG_FOO)
// token's presence condition mentions the gating atom.
func TestPresenceConditionAccumulatesForConfigGatedUnit(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "Kbuild"), "obj-$(CONFIG_FOO) += gated.o\n")

	d := NewDriver(&Config{DoBooleanConfigs: true})
	require.NoError(t, d.Run([]string{dir}))
	r := d.Results()

	path := filepath.Join(dir, "gated.o")
	require.True(t, r.CompilationUnits[path])
	formula, ok := r.PresenceConditions[path]
	require.True(t, ok, "gated unit should carry a presence condition")
	names := SMTAtomNames(formula)
	assert.Contains(t, names, "CONFIG_FOO")
}

// TestUnconfigurableUnitsExcludesKnownUnits checks 4.8 step 6: a
// prefix-matching leftover variable not swept into any other set is
// reported as unconfigurable, while variables already classified
// elsewhere are excluded.
func TestUnconfigurableUnitsExcludesKnownUnits(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "Kbuild"), `
obj-y += known.o
obj-unreachable- := stray.o
`)

	d := NewDriver(&Config{})
	require.NoError(t, d.Run([]string{dir}))
	r := d.Results()

	assert.False(t, r.UnconfigurableUnits[filepath.Join(dir, "known.o")])
	assert.True(t, r.UnconfigurableUnits[filepath.Join(dir, "stray.o")])
}
