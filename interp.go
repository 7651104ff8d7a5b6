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

	"github.com/golang/glog"
)

// interp.go is C6: the statement interpreter. It walks a parsed statement
// list under a running presence condition P, driving C5 for every
// expansion and C4 for every assignment, and recursing into conditional
// blocks and includes with P narrowed by the branch/include condition.

// Interp holds the running state for one directory's statement walk: the
// Algebra/Store/Expander it was built from, plus a recursion guard for
// include handling.
type Interp struct {
	alg *Algebra
	store *Store
	ex    *Expander
	dir   string

	// included records every include path already processed: each path
	// is parsed and run at most once per directory, which also stops
	// include cycles. It is not part of the spec's data model, just a
	// loop-safety measure.
	included map[string]bool
}

// NewInterp builds a statement interpreter for the makefile(s) rooted at
// dir, sharing alg/store/ex with the rest of this directory's evaluation.
func NewInterp(alg *Algebra, store *Store, ex *Expander, dir string) *Interp {
	return &Interp{alg: alg, store: store, ex: ex, dir: dir, included: make(map[string]bool)}
}

// Run processes every statement in stmts under condition p (5. "statement
// order within a block is preserved").
func (in *Interp) Run(stmts []Stmt, p Condition) {
	for _, st := range stmts {
		in.runOne(st, p)
	}
}

func (in *Interp) runOne(st Stmt, p Condition) {
	switch s := st.(type) {
	case *SetVariable:
		in.runSetVariable(s, p)
	case *Rule:
		// Rules do not influence presence conditions (1. Non-goals:
		// no dependency/build-ordering tracking); walked only so they
		// don't trip an unsupported-statement error.
	case *ConditionBlock:
		in.runConditionBlock(s, p)
	case *Include:
		in.runInclude(s, p)
	default:
		glog.Fatalf("%s: unsupported statement %T", in.dir, st)
	}
}

// runSetVariable implements `add_var` (4.5) for all four assignment
// tokens, under the running condition p.
func (in *Interp) runSetVariable(s *SetVariable, p Condition) {
	name, ok := s.VName.AsLiteral()
	if !ok {
		nameMV := in.ex.Expand(s.VName)
		for _, cd := range nameMV {
			if IsUndefined(cd.Value) || cd.Value == "" {
				continue
			}
			in.assignOne(cd.Value, s.Token, s.Value, in.alg.And(p, cd.Cond))
		}
		return
	}
	in.assignOne(name, s.Token, s.Value, p)
}

func (in *Interp) assignOne(name, token, value string, p Condition) {
	switch token {
	case "=":
		in.store.Assign(name, Recursive, value, p)
	case ":=":
		for _, cd := range in.ex.Expand(ParseExpansion(value)) {
			in.store.Assign(name, Simple, cd.Value, in.alg.And(p, cd.Cond))
		}
	case "+=":
		flavor := in.store.Flavor(name)
		if flavor == Simple {
			for _, cd := range in.ex.Expand(ParseExpansion(value)) {
				in.store.Append(name, Simple, cd.Value, in.alg.And(p, cd.Cond))
			}
		} else {
			in.store.Append(name, Recursive, value, p)
		}
	case "?=":
		in.store.AssignIfUndefined(name, Recursive, value, p)
	default:
		glog.Errorf("%s: unknown assignment operator %q", in.dir, token)
	}
}

// runConditionBlock implements 4.6. Only the two condition kinds named in
// the AST are supported; anything else is a fatal unsupported-condition-
// kind error (7). More-than-two-branch (else-if) shapes are already
// rejected at parse time (ParseMakefile), so only 1- or 2-branch blocks
// reach here.
func (in *Interp) runConditionBlock(block *ConditionBlock, p Condition) {
	if len(block.Branches) == 0 {
		return
	}
	primary := block.Branches[0]
	trueC, falseC := in.evalCondition(primary.Cond)
	in.Run(primary.Stmts, in.alg.And(p, trueC))
	if len(block.Branches) > 1 {
		in.Run(block.Branches[1].Stmts, in.alg.And(p, falseC))
	}
	if len(block.Branches) > 2 {
		glog.Warningf("%s:%d: unsupported conditional block shape (more than 2 branches)", block.Filename, block.Line)
	}
}

// evalCondition returns (trueCond, falseCond) for cond. For ifeq, these
// are NOT complements of each other (9.(b)): each is built from its own
// accumulated disjunction, which is the asymmetry the spec requires
// reimplementers to preserve.
func (in *Interp) evalCondition(cond BranchCond) (Condition, Condition) {
	switch c := cond.(type) {
	case IfdefCondition:
		// A literal name becomes the atom "defined(<name>)"; any other
		// expansion is defined wherever its value is not Undefined.
		defCond := in.alg.F()
		if name, ok := c.Exp.AsLiteral(); ok {
			defCond = in.alg.NewAtom("defined(" + name + ")")
		} else {
			for _, cd := range in.ex.Expand(c.Exp) {
				if !IsUndefined(cd.Value) {
					defCond = in.alg.Or(defCond, cd.Cond)
				}
			}
		}
		if c.Expected {
			return defCond, in.alg.Not(defCond)
		}
		return in.alg.Not(defCond), defCond

	case EqCondition:
		mv1, mv2 := in.ex.Expand(c.Exp1), in.ex.Expand(c.Exp2)
		trueDisj, falseDisj := in.alg.F(), in.alg.F()
		for _, a := range mv1 {
			for _, b := range mv2 {
				pairCond := in.alg.And(a.Cond, b.Cond)
				if in.alg.IsFalse(pairCond) {
					continue
				}
				// Undefined normalizes to "" before both the equality
				// check and the atom name below, so comparing against
				// it is an ordinary (defined) string comparison rather
				// than an automatic ambiguity.
				av, bv := a.Value, b.Value
				if IsUndefined(av) {
					av = ""
				}
				if IsUndefined(bv) {
					bv = ""
				}
				if av == bv {
					trueDisj = in.alg.Or(trueDisj, pairCond)
				} else {
					falseDisj = in.alg.Or(falseDisj, pairCond)
				}
				// A resolved side that still carries literal `$(...)`
				// text (an unmodeled function rendered back to source,
				// 4.3's "Other" row) is genuinely ambiguous: fold in a
				// fresh comparison atom (4.6) alongside the split above.
				if containsUnexpanded(av) || containsUnexpanded(bv) {
					atom := in.alg.NewAtom(av + "=" + bv)
					trueDisj = in.alg.Or(trueDisj, in.alg.And(pairCond, atom))
					falseDisj = in.alg.Or(falseDisj, in.alg.And(pairCond, in.alg.Not(atom)))
				}
			}
		}
		if c.Expected {
			return trueDisj, falseDisj
		}
		return falseDisj, trueDisj

	default:
		glog.Fatalf("%s: unsupported condition kind %T", in.dir, cond)
		return in.alg.F(), in.alg.F()
	}
}

// runInclude implements 4.7: the target expression is evaluated to a
// Multiverse of filenames; defined universes whose whitespace-tokens name
// existing files are parsed and recursed into under the narrowed
// condition. Missing files are silently skipped (7).
func (in *Interp) runInclude(inc *Include, p Condition) {
	mv := in.ex.Expand(inc.Expr)
	for _, cd := range mv {
		if IsUndefined(cd.Value) {
			continue
		}
		for _, tok := range splitSpaces(cd.Value) {
			path := tok
			if !filepath.IsAbs(path) {
				path = filepath.Join(in.dir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				continue // missing include: silently skipped (7).
			}
			if in.included[path] {
				continue
			}
			in.included[path] = true
			stmts := ParseMakefile(string(data), path)
			in.Run(stmts, in.alg.And(p, cd.Cond))
		}
	}
}
