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

// This file is the one concession to the "external parser" boundary
// (PURPOSE & SCOPE, Deliberately out of scope): a real kbuild tree relies on
// a separate tokenizer/AST library. Since none is vendored here, ParseMakefile
// and ParseExpansion produce the same minimal AST (ast.go) that component C6
// consumes, covering exactly the statement and expansion shapes the spec
// names. Recipes, pattern rules and define/endef blocks are intentionally
// not modeled; they do not influence presence conditions.

// funcNames are the builtin function names the expansion engine recognizes
// by name, so that e.g. "$(foo bar)" is not mistaken for a call to an
// unimplemented function named "foo".
var funcNames = map[string]bool{
	"subst": true, "patsubst": true, "filter-out": true, "sort": true,
	"addprefix": true, "if": true,
	"strip": true, "findstring": true, "filter": true, "word": true,
	"wordlist": true, "words": true, "firstword": true, "lastword": true,
	"join": true, "wildcard": true, "dir": true, "notdir": true,
	"suffix": true, "basename": true, "addsuffix": true, "realpath": true,
	"abspath": true, "value": true, "eval": true, "shell": true, "call": true,
	"foreach": true, "origin": true, "flavor": true, "info": true,
	"warning": true, "error": true, "and": true, "or": true,
}

// ParseExpansion parses raw make syntax (an RHS value, a variable name
// expression, a function argument, ...) into an Expansion. This is the
// "helper [that] parses a raw RHS string into the same AST" named in
// 6. EXTERNAL INTERFACES.
func ParseExpansion(s string) Expansion {
	var exp Expansion
	i := 0
	lit := strings.Builder{}
	flush := func() {
		if lit.Len() > 0 {
			exp = append(exp, Lit(lit.String()))
			lit.Reset()
		}
	}
	for i < len(s) {
		ch := s[i]
		if ch != '$' {
			lit.WriteByte(ch)
			i++
			continue
		}
		if i+1 >= len(s) {
			lit.WriteByte(ch)
			i++
			continue
		}
		next := s[i+1]
		if next == '$' {
			lit.WriteByte('$')
			i += 2
			continue
		}
		if next != '(' && next != '{' {
			// $x form.
			flush()
			exp = append(exp, &VariableRef{Name: Expansion{Lit(s[i+1 : i+2])}})
			i += 2
			continue
		}
		open := next
		close := matchingClose(open)
		depth := 1
		j := i + 2
		for j < len(s) && depth > 0 {
			switch s[j] {
			case open:
				depth++
			case close:
				depth--
				if depth == 0 {
					break
				}
			}
			if depth == 0 {
				break
			}
			j++
		}
		if depth != 0 {
			glog.Warningf("unterminated variable reference: %q", s[i:])
			lit.WriteString(s[i:])
			i = len(s)
			break
		}
		inner := s[i+2 : j]
		flush()
		exp = append(exp, parseDollarInner(inner))
		i = j + 1
	}
	flush()
	return exp
}

func matchingClose(open byte) byte {
	if open == '(' {
		return ')'
	}
	return '}'
}

// parseDollarInner parses the text between `$(` and `)` (or `${`/`}`) into
// a FuncNode: a function call, a substitution reference, or a bare
// variable reference.
func parseDollarInner(inner string) FuncNode {
	word, rest, hasSpace := splitFirstTopLevelSpace(inner)
	if hasSpace && funcNames[word] {
		return buildFunc(word, rest)
	}
	// $(var:from=to)
	if colon, ok := findTopLevel(inner, ':'); ok {
		name := inner[:colon]
		suffix := inner[colon+1:]
		if eq, ok := findTopLevel(suffix, '='); ok {
			return &SubstitutionRef{
				VName: ParseExpansion(name),
				From:  ParseExpansion(suffix[:eq]),
				To:    ParseExpansion(suffix[eq+1:]),
			}
		}
	}
	return &VariableRef{Name: ParseExpansion(inner)}
}

func buildFunc(name, rest string) FuncNode {
	switch name {
	case "subst":
		args := splitTopLevel(rest, ',', 3)
		return &SubstFunction{From: argExp(args, 0), To: argExp(args, 1), In: argExp(args, 2)}
	case "patsubst":
		args := splitTopLevel(rest, ',', 3)
		return &PatSubstFunction{Pat: argExp(args, 0), Repl: argExp(args, 1), In: argExp(args, 2)}
	case "filter-out":
		args := splitTopLevel(rest, ',', 2)
		return &FilterOutFunction{Pat: argExp(args, 0), In: argExp(args, 1)}
	case "sort":
		return &SortFunction{In: ParseExpansion(rest)}
	case "addprefix":
		args := splitTopLevel(rest, ',', 2)
		return &AddPrefixFunction{Prefix: argExp(args, 0), In: argExp(args, 1)}
	case "if":
		args := splitTopLevel(rest, ',', 3)
		f := &IfFunction{Cond: argExp(args, 0), Then: argExp(args, 1)}
		if len(args) > 2 {
			f.Else = ParseExpansion(args[2])
			f.HasElse = true
		}
		return f
	default:
		return &OtherFunction{Name: name, Src: "$(" + name + " " + rest + ")"}
	}
}

func argExp(args []string, i int) Expansion {
	if i >= len(args) {
		return nil
	}
	return ParseExpansion(args[i])
}

// splitFirstTopLevelSpace splits s at the first top-level space, returning
// the leading word, the remainder, and whether a space was found at all.
func splitFirstTopLevelSpace(s string) (word, rest string, found bool) {
	depth := 0
	var stack []byte
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			stack = append(stack, matchingClose(s[i]))
			depth++
		case ')', '}':
			if depth > 0 {
				stack = stack[:len(stack)-1]
				depth--
			}
		case ' ', '\t':
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return s, "", false
}

// findTopLevel returns the index of the first occurrence of ch at paren
// depth 0.
func findTopLevel(s string, ch byte) (int, bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			depth++
		case ')', '}':
			if depth > 0 {
				depth--
			}
		default:
			if s[i] == ch && depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// splitTopLevel splits s on sep at paren depth 0, stopping once max-1
// separators have been consumed (the remainder becomes the final element),
// matching make's argument-splitting semantics.
func splitTopLevel(s string, sep byte, max int) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			depth++
		case ')', '}':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 && (max <= 0 || len(parts) < max-1) {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// ParseMakefile parses makefile source text into a statement list. Recipe
// lines (leading tab) and define/endef blocks are dropped; they cannot
// affect presence conditions.
func ParseMakefile(src, filename string) []Stmt {
	p := &mkParser{filename: filename}
	lines := splitLogicalLines(src)
	p.parseBlock(lines, 0, len(lines))
	return p.stmts
}

type rawLine struct {
	text string
	line int
}

// splitLogicalLines joins backslash-continued lines and strips comments.
func splitLogicalLines(src string) []rawLine {
	var out []rawLine
	physLines := strings.Split(src, "\n")
	var cur strings.Builder
	startLine := 0
	have := false
	for i, pl := range physLines {
		line := stripComment(pl)
		if !have {
			startLine = i + 1
			have = true
		}
		trimmed := strings.TrimSuffix(line, "\\")
		cur.WriteString(trimmed)
		if trimmed == line {
			// no trailing backslash: logical line complete.
			out = append(out, rawLine{text: cur.String(), line: startLine})
			cur.Reset()
			have = false
		} else {
			cur.WriteByte(' ')
		}
	}
	if cur.Len() > 0 {
		out = append(out, rawLine{text: cur.String(), line: startLine})
	}
	return out
}

func stripComment(line string) string {
	depth := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '(', '{':
			depth++
		case ')', '}':
			if depth > 0 {
				depth--
			}
		case '#':
			return line[:i]
		}
	}
	return line
}

type mkParser struct {
	filename string
	stmts    []Stmt
}

func (p *mkParser) emit(s Stmt) {
	p.stmts = append(p.stmts, s)
}

// parseBlock parses lines[from:to] (already logical, comment-free) as a
// sequence of statements, recursing into ifdef/ifeq blocks.
func (p *mkParser) parseBlock(lines []rawLine, from, to int) {
	for i := from; i < to; i++ {
		l := lines[i]
		trimmed := strings.TrimSpace(l.text)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(l.text, "\t") {
			continue // recipe line, out of scope.
		}
		word, rest := firstWord(trimmed)
		switch word {
		case "ifdef", "ifndef":
			end := matchingEndif(lines, i+1, to)
			elseAt := matchingElse(lines, i+1, end)
			if elseAt >= 0 && isElseIf(lines[elseAt]) {
				glog.Warningf("%s:%d: unsupported conditional block (else-if chain)", p.filename, l.line)
				i = end
				continue
			}
			block := &ConditionBlock{Filename: p.filename, Line: l.line}
			trueEnd := end
			if elseAt >= 0 {
				trueEnd = elseAt
			}
			sub := &mkParser{filename: p.filename}
			sub.parseBlock(lines, i+1, trueEnd)
			block.Branches = append(block.Branches, Branch{
				Cond:  IfdefCondition{Exp: ParseExpansion(strings.TrimSpace(rest)), Expected: word == "ifdef"},
				Stmts: sub.stmts,
			})
			if elseAt >= 0 {
				esub := &mkParser{filename: p.filename}
				esub.parseBlock(lines, elseAt+1, end)
				block.Branches = append(block.Branches, Branch{Stmts: esub.stmts})
			}
			p.emit(block)
			i = end
		case "ifeq", "ifneq":
			end := matchingEndif(lines, i+1, to)
			elseAt := matchingElse(lines, i+1, end)
			if elseAt >= 0 && isElseIf(lines[elseAt]) {
				glog.Warningf("%s:%d: unsupported conditional block (else-if chain)", p.filename, l.line)
				i = end
				continue
			}
			e1, e2 := parseEqArgs(rest)
			block := &ConditionBlock{Filename: p.filename, Line: l.line}
			trueEnd := end
			if elseAt >= 0 {
				trueEnd = elseAt
			}
			sub := &mkParser{filename: p.filename}
			sub.parseBlock(lines, i+1, trueEnd)
			block.Branches = append(block.Branches, Branch{
				Cond:  EqCondition{Exp1: ParseExpansion(e1), Exp2: ParseExpansion(e2), Expected: word == "ifeq"},
				Stmts: sub.stmts,
			})
			if elseAt >= 0 {
				esub := &mkParser{filename: p.filename}
				esub.parseBlock(lines, elseAt+1, end)
				block.Branches = append(block.Branches, Branch{Stmts: esub.stmts})
			}
			p.emit(block)
			i = end
		case "define":
			// Skip the define body up to its endef.
			for i+1 < to {
				i++
				if w, _ := firstWord(strings.TrimSpace(lines[i].text)); w == "endef" {
					break
				}
			}
		case "else", "endif":
			// handled by matchingEndif/matchingElse from the opening line;
			// reaching one here means an unbalanced block.
			glog.Warningf("%s:%d: unmatched %q", p.filename, l.line, word)
		case "include", "-include":
			p.emit(&Include{
				Expr:     ParseExpansion(strings.TrimSpace(rest)),
				Optional: word == "-include",
				Filename: p.filename,
				Line:     l.line,
			})
		default:
			p.parseAssignOrRule(trimmed, l.line)
		}
	}
}

// isElseIf reports whether a matched "else" line is actually an "else
// ifdef"/"else ifeq" chain, which 4.6/9.(b) treats as an unsupported
// conditional block shape (more than two branches).
func isElseIf(l rawLine) bool {
	w, rest := firstWord(strings.TrimSpace(l.text))
	if w != "else" {
		return false
	}
	w2, _ := firstWord(strings.TrimSpace(rest))
	switch w2 {
	case "ifdef", "ifndef", "ifeq", "ifneq":
		return true
	}
	return false
}

func firstWord(s string) (string, string) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

var assignOps = []string{":=", "+=", "?=", "="}

func (p *mkParser) parseAssignOrRule(line string, lineno int) {
	if idx, op := findTopLevelOp(line, assignOps); idx >= 0 {
		lhs := strings.TrimSpace(line[:idx])
		rhs := strings.TrimSpace(line[idx+len(op):])
		p.emit(&SetVariable{
			VName:    ParseExpansion(lhs),
			Token:    op,
			Value:    rhs,
			Filename: p.filename,
			Line:     lineno,
		})
		return
	}
	if _, ok := findTopLevel(line, ':'); ok {
		p.emit(&Rule{Targets: line, Filename: p.filename, Line: lineno})
		return
	}
	glog.Warningf("%s:%d: cannot parse statement: %q", p.filename, lineno, line)
}

// findTopLevelOp finds the first (leftmost) occurrence, at paren depth 0,
// of any operator in ops, preferring longer operators at the same position.
func findTopLevelOp(s string, ops []string) (int, string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			depth++
			continue
		case ')', '}':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth != 0 {
			continue
		}
		for _, op := range ops {
			if strings.HasPrefix(s[i:], op) {
				return i, op
			}
		}
	}
	return -1, ""
}

func parseEqArgs(rest string) (string, string) {
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		inner := rest[1 : len(rest)-1]
		if idx, ok := findTopLevel(inner, ','); ok {
			return strings.TrimSpace(inner[:idx]), strings.TrimSpace(inner[idx+1:])
		}
		return inner, ""
	}
	// quoted-space form: "a" "b"
	fields := strings.Fields(rest)
	var vals []string
	for _, f := range fields {
		vals = append(vals, strings.Trim(f, `"'`))
	}
	if len(vals) >= 2 {
		return vals[0], vals[1]
	}
	if len(vals) == 1 {
		return vals[0], ""
	}
	return "", ""
}

// matchingEndif finds the index of the endif matching the block opened
// just before lines[from], honoring nesting.
func matchingEndif(lines []rawLine, from, to int) int {
	depth := 0
	for i := from; i < to; i++ {
		w, _ := firstWord(strings.TrimSpace(lines[i].text))
		switch w {
		case "ifdef", "ifndef", "ifeq", "ifneq":
			depth++
		case "endif":
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return to
}

// matchingElse finds the top-level "else" between from and the matching
// endif at `end`, or -1 if there is none.
func matchingElse(lines []rawLine, from, end int) int {
	depth := 0
	for i := from; i < end; i++ {
		w, _ := firstWord(strings.TrimSpace(lines[i].text))
		switch w {
		case "ifdef", "ifndef", "ifeq", "ifneq":
			depth++
		case "endif":
			depth--
		case "else":
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
