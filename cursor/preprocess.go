// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cursor

import "strings"

// Preprocess implements §4.5 step 1: strip comments, normalize
// whitespace, and split on statement terminators, discarding any
// statement that is empty after trimming. Line comments start with "--"
// or "#"; block comments are "/* ... */", which may span lines.
func Preprocess(sql string) []string {
	stripped := stripComments(sql)

	var statements []string
	for _, raw := range strings.Split(stripped, ";") {
		stmt := normalizeWhitespace(raw)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

func stripComments(sql string) string {
	var b strings.Builder
	runes := []rune(sql)
	n := len(runes)

	for i := 0; i < n; i++ {
		switch {
		case runes[i] == '-' && i+1 < n && runes[i+1] == '-':
			i = skipToEOL(runes, i)
		case runes[i] == '#':
			i = skipToEOL(runes, i)
		case runes[i] == '/' && i+1 < n && runes[i+1] == '*':
			end := indexOfBlockEnd(runes, i+2)
			b.WriteRune(' ')
			i = end + 1
		default:
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}

// skipToEOL returns the index of the newline terminating the line comment
// starting at i (or len(runes) if the comment runs to end of input),
// since the caller's loop increments past whatever it returns.
func skipToEOL(runes []rune, i int) int {
	for i < len(runes) && runes[i] != '\n' {
		i++
	}
	return i
}

// indexOfBlockEnd returns the index of the '/' closing the block comment
// whose body starts at i, or len(runes)-1 if it is unterminated.
func indexOfBlockEnd(runes []rune, i int) int {
	for i+1 < len(runes) {
		if runes[i] == '*' && runes[i+1] == '/' {
			return i + 1
		}
		i++
	}
	return len(runes) - 1
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
