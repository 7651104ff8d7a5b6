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

// multiverse.go is C3: the multiverse algebra. A Multiverse models "the
// set of values this expression can take, indexed by the condition under
// which it takes that value" (4.2). Operations on make primitives are
// lifted pointwise across a Multiverse's universes by Hoist (4.4).

// CondDef pairs one universe's condition with the value and zcond the
// expression takes in that universe. ZCond is carried alongside Cond and
// OR-combined wherever universes are combined or merged (Hoist, Dedup,
// variable lookups); Prune and every other operation here decide on Cond
// alone.
type CondDef struct {
	Cond  Condition
	ZCond Condition
	Value string
}

// Undefined is the sentinel CondDef.Value meaning "not defined in this
// universe" (3. DATA MODEL: "value ∈ string ∪ {undefined}"). It joins as
// the empty string but must be distinguishable from a genuine empty
// string while propagating through hoist, so it cannot be "".
const Undefined = "\x00undefined\x00"

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v string) bool { return v == Undefined }

// JoinDefined renders v for concatenation purposes: the empty string for
// Undefined, v itself otherwise (4.3, "join ... skipping undefined
// pieces").
func JoinDefined(v string) string {
	if IsUndefined(v) {
		return ""
	}
	return v
}

// Multiverse is an ordered list of CondDefs: every universe the owning
// expression can be evaluated in. Order is preserved because later
// universes are meant to shadow earlier ones for the "first viable value"
// use sites (4.2 edge cases).
type Multiverse []CondDef

// Prune drops universes whose condition is unsatisfiable, since they can
// never actually occur (4.2, keeps multiverses from growing unboundedly
// with dead universes).
func (mv Multiverse) Prune(alg *Algebra) Multiverse {
	out := make(Multiverse, 0, len(mv))
	for _, cd := range mv {
		if alg.IsFalse(cd.Cond) {
			continue
		}
		out = append(out, cd)
	}
	return out
}

// Dedup merges universes that carry the same value, OR-ing their
// conditions together, so a Multiverse never reports the same string
// twice under separate conditions (4.2, "Dedup at the end").
func (mv Multiverse) Dedup(alg *Algebra) Multiverse {
	order := make([]string, 0, len(mv))
	byValue := make(map[string]CondDef, len(mv))
	for _, cd := range mv {
		if existing, ok := byValue[cd.Value]; ok {
			existing.Cond = alg.Or(existing.Cond, cd.Cond)
			existing.ZCond = alg.Or(existing.ZCond, cd.ZCond)
			byValue[cd.Value] = existing
			continue
		}
		byValue[cd.Value] = cd
		order = append(order, cd.Value)
	}
	out := make(Multiverse, len(order))
	for i, v := range order {
		out[i] = byValue[v]
	}
	return out
}

// Values returns each universe's value, in order. The strings are
// distinct only if the Multiverse has been deduped.
func (mv Multiverse) Values() []string {
	out := make([]string, len(mv))
	for i, cd := range mv {
		out[i] = cd.Value
	}
	return out
}

// PresenceCondition returns the disjunction of every universe's condition:
// the condition under which this expression takes on ANY value at all.
func (mv Multiverse) PresenceCondition(alg *Algebra) Condition {
	conds := make([]Condition, len(mv))
	for i, cd := range mv {
		conds[i] = cd.Cond
	}
	return alg.OrAll(conds)
}

// single builds a one-universe Multiverse, the base case most literal
// expansions produce.
func single(alg *Algebra, value string) Multiverse {
	return Multiverse{{Cond: alg.T(), ZCond: alg.F(), Value: value}}
}

// Hoist lifts a pointwise string operation across one or more Multiverses
// by taking the Cartesian product of their universes: every combination
// of input universes produces one output universe, conditioned on the
// conjunction of the inputs' conditions, computing op eagerly on that
// combination's concrete strings (4.4). The result is pruned and deduped
// before being returned so multiverses don't grow without bound across a
// long expansion chain.
func Hoist(alg *Algebra, op func(values []string) string, mvs ...Multiverse) Multiverse {
	if len(mvs) == 0 {
		return single(alg, op(nil))
	}
	combos := []CondDef{{Cond: alg.T(), ZCond: alg.F(), Value: ""}}
	valuesSoFar := [][]string{{}}
	for _, mv := range mvs {
		var nextCombos []CondDef
		var nextValues [][]string
		for ci, combo := range combos {
			for _, cd := range mv {
				cond := alg.And(combo.Cond, cd.Cond)
				if alg.IsFalse(cond) {
					continue
				}
				vs := append(append([]string{}, valuesSoFar[ci]...), cd.Value)
				nextCombos = append(nextCombos, CondDef{
					Cond:  cond,
					ZCond: alg.Or(combo.ZCond, cd.ZCond),
				})
				nextValues = append(nextValues, vs)
			}
		}
		combos = nextCombos
		valuesSoFar = nextValues
	}
	out := make(Multiverse, len(combos))
	for i, combo := range combos {
		out[i] = CondDef{Cond: combo.Cond, ZCond: combo.ZCond, Value: op(valuesSoFar[i])}
	}
	return out.Prune(alg).Dedup(alg)
}

// HoistUnary is the common case of Hoist with a single input Multiverse.
func HoistUnary(alg *Algebra, op func(v string) string, mv Multiverse) Multiverse {
	return Hoist(alg, func(vs []string) string { return op(vs[0]) }, mv)
}

// HoistBinary is the common case of Hoist with exactly two input
// Multiverses.
func HoistBinary(alg *Algebra, op func(a, b string) string, a, b Multiverse) Multiverse {
	return Hoist(alg, func(vs []string) string { return op(vs[0], vs[1]) }, a, b)
}
