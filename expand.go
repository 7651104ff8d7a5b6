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
	"strings"

	"github.com/golang/glog"
)

// expand.go is C5: the expansion engine. It turns AST Expansion/FuncNode
// trees into Multiverses by hoisting each element's Multiverse through
// Hoist (4.3), and resolves variable references per 4.4 (special atoms,
// CONFIG_* boolean/tristate modes, store lookups across equivalence
// sets, and the undefined-reference sentinel).
type Expander struct {
	alg   *Algebra
	store *Store
	cfg   *Config

	// undefined is the "undefined set" of 4.4/8-property-6: referencing
	// an undefined name twice must not grow the store twice.
	undefined map[string]bool
}

// NewExpander builds an expansion engine against alg/store/cfg. One
// Expander belongs to one directory's evaluation (5. CONCURRENCY &
// RESOURCE MODEL).
func NewExpander(alg *Algebra, store *Store, cfg *Config) *Expander {
	return &Expander{alg: alg, store: store, cfg: cfg, undefined: make(map[string]bool)}
}

// Expand evaluates e into a Multiverse. A pure-literal Expansion short
// circuits to a single T-conditioned universe.
func (ex *Expander) Expand(e Expansion) Multiverse {
	if lit, ok := e.AsLiteral(); ok {
		return single(ex.alg, lit)
	}
	mvs := make([]Multiverse, len(e))
	for i, el := range e {
		switch v := el.(type) {
		case Lit:
			mvs[i] = single(ex.alg, string(v))
		case FuncNode:
			mvs[i] = ex.evalFuncNode(v)
		default:
			mvs[i] = single(ex.alg, "")
		}
	}
	// Expansion-level join: concatenate pieces with the empty separator,
	// skipping undefined pieces; if every piece is undefined the whole
	// universe's value is the empty string (4.3).
	return Hoist(ex.alg, func(values []string) string {
		allUndefined := true
		var b strings.Builder
		for _, v := range values {
			if IsUndefined(v) {
				continue
			}
			allUndefined = false
			b.WriteString(v)
		}
		if allUndefined {
			return ""
		}
		return b.String()
	}, mvs...)
}

// evalFuncNode dispatches a FuncNode to its per-universe semantics (4.3
// table). Each case hoists across its argument Multiverses so that every
// combination of argument universes gets its own conjoined condition,
// then computes one deterministic string per combination.
func (ex *Expander) evalFuncNode(f FuncNode) Multiverse {
	switch fn := f.(type) {
	case *VariableRef:
		return ex.VariableRef(fn.Name)

	case *SubstFunction:
		from, to, in := ex.Expand(fn.From), ex.Expand(fn.To), ex.Expand(fn.In)
		return Hoist(ex.alg, func(vs []string) string {
			if IsUndefined(vs[2]) {
				return Undefined
			}
			f, t, s := JoinDefined(vs[0]), JoinDefined(vs[1]), vs[2]
			if f == "" {
				return s
			}
			return strings.ReplaceAll(s, f, t)
		}, from, to, in)

	case *PatSubstFunction:
		pat, repl, in := ex.Expand(fn.Pat), ex.Expand(fn.Repl), ex.Expand(fn.In)
		return Hoist(ex.alg, func(vs []string) string {
			if IsUndefined(vs[2]) {
				return Undefined
			}
			pat, repl := JoinDefined(vs[0]), JoinDefined(vs[1])
			words := splitSpaces(vs[2])
			for i, w := range words {
				words[i] = substPattern(pat, repl, w)
			}
			return joinSpaces(words)
		}, pat, repl, in)

	case *FilterOutFunction:
		pat, in := ex.Expand(fn.Pat), ex.Expand(fn.In)
		return Hoist(ex.alg, func(vs []string) string {
			if IsUndefined(vs[1]) {
				return Undefined
			}
			pats := splitSpaces(JoinDefined(vs[0]))
			var out []string
			for _, w := range splitSpaces(vs[1]) {
				drop := false
				for _, p := range pats {
					if matchPattern(p, w) {
						drop = true
						break
					}
				}
				if !drop {
					out = append(out, w)
				}
			}
			return joinSpaces(out)
		}, pat, in)

	case *SortFunction:
		// Pass-through; deduplication happens at Multiverse.Dedup (4.3).
		return ex.Expand(fn.In)

	case *AddPrefixFunction:
		prefix, in := ex.Expand(fn.Prefix), ex.Expand(fn.In)
		return Hoist(ex.alg, func(vs []string) string {
			if IsUndefined(vs[1]) {
				return Undefined
			}
			p := JoinDefined(vs[0])
			words := splitSpaces(vs[1])
			for i, w := range words {
				words[i] = p + w
			}
			return joinSpaces(words)
		}, prefix, in)

	case *IfFunction:
		return ex.evalIf(fn)

	case *SubstitutionRef:
		// 9.(a): provided as a composition of variable-ref and patsubst.
		varMV := ex.VariableRef(fn.VName)
		from, to := ex.Expand(fn.From), ex.Expand(fn.To)
		return Hoist(ex.alg, func(vs []string) string {
			if IsUndefined(vs[0]) {
				return Undefined
			}
			pat, repl := JoinDefined(vs[1]), JoinDefined(vs[2])
			words := splitSpaces(vs[0])
			for i, w := range words {
				words[i] = substRef(pat, repl, w)
			}
			return joinSpaces(words)
		}, varMV, from, to)

	case *OtherFunction:
		glog.Warningf("unmodeled function %q rendered back to source", fn.Name)
		return single(ex.alg, fn.Source())

	default:
		glog.Warningf("unrecognized function node %T rendered back to source", f)
		return single(ex.alg, f.Source())
	}
}

// evalIf implements `$(if c,t[,e])` (4.3): c's Multiverse is split into
// universes where it is non-empty/defined ("true") and the rest
// ("false"); t is returned (re-expanded) under the OR of the true
// conditions, e under the OR of the false conditions.
func (ex *Expander) evalIf(fn *IfFunction) Multiverse {
	condMV := ex.Expand(fn.Cond)
	trueCond, falseCond := ex.alg.F(), ex.alg.F()
	for _, cd := range condMV {
		if !IsUndefined(cd.Value) && cd.Value != "" {
			trueCond = ex.alg.Or(trueCond, cd.Cond)
		} else {
			falseCond = ex.alg.Or(falseCond, cd.Cond)
		}
	}
	var out Multiverse
	if !ex.alg.IsFalse(trueCond) {
		for _, cd := range ex.Expand(fn.Then) {
			cond := ex.alg.And(cd.Cond, trueCond)
			if ex.alg.IsFalse(cond) {
				continue
			}
			out = append(out, CondDef{Cond: cond, ZCond: cd.ZCond, Value: cd.Value})
		}
	}
	if fn.HasElse && !ex.alg.IsFalse(falseCond) {
		for _, cd := range ex.Expand(fn.Else) {
			cond := ex.alg.And(cd.Cond, falseCond)
			if ex.alg.IsFalse(cond) {
				continue
			}
			out = append(out, CondDef{Cond: cond, ZCond: cd.ZCond, Value: cd.Value})
		}
	}
	return out.Prune(ex.alg).Dedup(ex.alg)
}

// VariableRef resolves `$(nameExp)` (4.4): nameExp is itself expanded
// first (so `$($(X))` works), then each resulting name string is looked
// up and the results combined under the conjunction of the name
// universe's condition and the looked-up value's condition.
func (ex *Expander) VariableRef(nameExp Expansion) Multiverse {
	nameMV := ex.Expand(nameExp)
	var out Multiverse
	for _, ncd := range nameMV {
		if IsUndefined(ncd.Value) {
			continue
		}
		for _, vcd := range ex.resolveVariable(ncd.Value) {
			cond := ex.alg.And(ncd.Cond, vcd.Cond)
			if ex.alg.IsFalse(cond) {
				continue
			}
			out = append(out, CondDef{Cond: cond, ZCond: ex.alg.Or(ncd.ZCond, vcd.ZCond), Value: vcd.Value})
		}
	}
	return out.Prune(ex.alg).Dedup(ex.alg)
}

// resolveVariable implements 4.4's per-name dispatch for a concrete
// variable name string.
func (ex *Expander) resolveVariable(name string) Multiverse {
	switch {
	case name == "BITS":
		b32 := ex.alg.NewAtom("BITS=32")
		b64 := ex.alg.NewAtom("BITS=64")
		return Multiverse{
			{Cond: b32, ZCond: ex.alg.F(), Value: "32"},
			{Cond: b64, ZCond: ex.alg.F(), Value: "64"},
		}

	case strings.HasPrefix(name, "CONFIG_"):
		return ex.resolveConfig(name)

	case ex.store.IsDefined(name):
		return ex.resolveStored(name)

	default:
		return ex.resolveUndefined(name)
	}
}

// resolveConfig implements 4.4's CONFIG_* boolean/tristate modes.
func (ex *Expander) resolveConfig(name string) Multiverse {
	if ex.cfg != nil && ex.cfg.DoBooleanConfigs {
		v := ex.alg.NewAtom(name)
		return Multiverse{
			{Cond: v, ZCond: ex.alg.F(), Value: "y"},
			{Cond: ex.alg.Not(v), ZCond: ex.alg.F(), Value: Undefined},
		}
	}
	defined := ex.alg.NewAtom("defined(" + name + ")")
	isY := ex.alg.NewAtom(name + "=y")
	isM := ex.alg.NewAtom(name + "=m")
	yCond := ex.alg.And(ex.alg.And(defined, isY), ex.alg.Not(isM))
	mCond := ex.alg.And(ex.alg.And(defined, isM), ex.alg.Not(isY))
	restCond := ex.alg.Not(ex.alg.Or(yCond, mCond))
	return Multiverse{
		{Cond: yCond, ZCond: ex.alg.F(), Value: "y"},
		{Cond: mCond, ZCond: ex.alg.F(), Value: "m"},
		{Cond: restCond, ZCond: ex.alg.F(), Value: Undefined},
	}
}

// resolveStored implements 4.4's "otherwise" branch: iterate the
// equivalence set, expanding RECURSIVE entries now and taking SIMPLE
// entries as already-expanded, concatenating the resulting CondDefs
// rather than string-joining them (see store.go's StoredEntry doc).
func (ex *Expander) resolveStored(name string) Multiverse {
	var out Multiverse
	for _, entry := range ex.store.Entries(name) {
		if entry.Flavor == Simple {
			out = append(out, entry.MV...)
			continue
		}
		for _, cd := range entry.MV {
			sub := ex.Expand(ParseExpansion(cd.Value))
			for _, scd := range sub {
				cond := ex.alg.And(cd.Cond, scd.Cond)
				if ex.alg.IsFalse(cond) {
					continue
				}
				out = append(out, CondDef{Cond: cond, ZCond: ex.alg.Or(cd.ZCond, scd.ZCond), Value: scd.Value})
			}
		}
	}
	return out.Prune(ex.alg).Dedup(ex.alg)
}

// resolveUndefined implements 4.4/7's undefined-reference handling and
// 8-property-6's idempotence: the first reference records name in the
// undefined set and logs a warning; every reference returns the Undefined
// sentinel under T. No `$(name)` self-entry is added to the store, so the
// store is never modified by an undefined reference.
func (ex *Expander) resolveUndefined(name string) Multiverse {
	if !ex.undefined[name] {
		ex.undefined[name] = true
		glog.Warningf("undefined variable reference: %s", name)
	}
	return Multiverse{{Cond: ex.alg.T(), ZCond: ex.alg.F(), Value: Undefined}}
}

// ResolveVariable exposes resolveVariable for C7, which needs to read
// seed variables (obj-y, lib-y, ...) the same way a `$(name)` reference
// would, without going through VariableRef's extra name-indirection
// layer since the collector already has the literal name in hand.
func (ex *Expander) ResolveVariable(name string) Multiverse {
	return ex.resolveVariable(name)
}

// UndefinedNames returns every variable name that was referenced while
// undefined, in no particular order (7, "record in undefined set").
func (ex *Expander) UndefinedNames() []string {
	names := make([]string, 0, len(ex.undefined))
	for n := range ex.undefined {
		names = append(names, n)
	}
	return names
}
