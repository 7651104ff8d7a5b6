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

// strutil.go holds the word/pattern string helpers that expand.go and
// collect.go build on: splitting whitespace-separated word lists and
// matching/substituting make's single-'%'-wildcard patterns. Adapted from
// the byte-oriented parser helpers this evaluator's idiom is grounded on;
// the parser-internal helpers built around a from-scratch line scanner
// (comment stripping, backslash-newline joining, paren-skipping literal
// search) are superseded here by ParseMakefile's own scanner and are not
// carried over.

var wsbytes = [256]bool{' ': true, '\t': true, '\n': true, '\r': true}

func isWhitespace(ch rune) bool {
	if int(ch) >= len(wsbytes) {
		return false
	}
	return wsbytes[ch]
}

// splitSpaces splits s into whitespace-separated words, the make notion
// of a "word list" (4.3, word-list functions).
func splitSpaces(s string) []string {
	var r []string
	tokStart := -1
	for i, ch := range s {
		if isWhitespace(ch) {
			if tokStart >= 0 {
				r = append(r, s[tokStart:i])
				tokStart = -1
			}
		} else if tokStart < 0 {
			tokStart = i
		}
	}
	if tokStart >= 0 {
		r = append(r, s[tokStart:])
	}
	glog.V(2).Infof("splitSpaces(%q)=%q", s, r)
	return r
}

// joinSpaces is splitSpaces's inverse: make always separates word lists
// with a single space regardless of the original spacing.
func joinSpaces(words []string) string {
	return strings.Join(words, " ")
}

// matchPattern reports whether str matches pat, a make pattern containing
// at most one '%' wildcard.
func matchPattern(pat, str string) bool {
	i := strings.IndexByte(pat, '%')
	if i < 0 {
		return pat == str
	}
	return strings.HasPrefix(str, pat[:i]) && strings.HasSuffix(str, pat[i+1:])
}

// substPattern implements $(patsubst pat,repl,str) for one word: if str
// matches pat, the stem captured by pat's '%' is substituted into repl's
// '%'; otherwise str is returned unchanged.
func substPattern(pat, repl, str string) string {
	ps := strings.SplitN(pat, "%", 2)
	if len(ps) != 2 {
		if str == pat {
			return repl
		}
		return str
	}
	in := str
	trimmed := str
	if ps[0] != "" {
		trimmed = strings.TrimPrefix(in, ps[0])
		if trimmed == in {
			return str
		}
	}
	in = trimmed
	if ps[1] != "" {
		trimmed = strings.TrimSuffix(in, ps[1])
		if trimmed == in {
			return str
		}
	}

	rs := strings.SplitN(repl, "%", 2)
	if len(rs) != 2 {
		return repl
	}
	return rs[0] + trimmed + rs[1]
}

// substRef implements the $(var:from=to) substitution reference (9.(a)):
// if both from and to contain '%' it behaves like patsubst, otherwise
// from is treated as a literal suffix: a word ending in from has it
// replaced by to, and any other word is returned unchanged.
func substRef(pat, repl, str string) string {
	if strings.IndexByte(pat, '%') >= 0 && strings.IndexByte(repl, '%') >= 0 {
		return substPattern(pat, repl, str)
	}
	if !strings.HasSuffix(str, pat) {
		return str
	}
	str = strings.TrimSuffix(str, pat)
	return str + repl
}
