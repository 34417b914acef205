package cliutil

import (
	"strings"
)

// Wrap the string `s` to a maximum width `w`.  Pass `w` == 0 to do no wrapping.
//
// In order to have some room for slop to avoid things like a short word being on a line by itself,
// most lines are actually wrapped to `w - 5`.
func Wrap(w int, s string) string {
	return wrap(0, w, s)
}

// Wrap the string `s` to a maximum width `w` with leading indent `i`.  The first line is not
// indented (this is assumed to be done by caller).  Pass `w` == 0 to do no wrapping
//
// In order to have some room for slop to avoid things like a short word being on a line by itself,
// most lines are actually wrapped to `w - 5`.
func WrapIndent(i, w int, s string) string {
	return wrap(i, w, s)
}

// wrap greedily breaks `s` at spaces so that each line stays under `w - 5`
// columns, counting the `i` columns of caller-provided prefix.  Continuation
// lines get `i` columns of indentation; spacing between words that stay on
// the same line is preserved as-is (so double-spaces after sentences
// survive).  Hard newlines in `s` are kept.
func wrap(i, w int, s string) string {
	if w == 0 {
		return s
	}
	budget := w - 5
	indent := strings.Repeat(" ", i)

	var ret strings.Builder
	for lineNum, line := range strings.Split(s, "\n") {
		if lineNum > 0 {
			ret.WriteString("\n")
			if line != "" {
				ret.WriteString(indent)
			}
		}
		col := i
		pos := 0
		for pos < len(line) {
			sepEnd := pos
			for sepEnd < len(line) && line[sepEnd] == ' ' {
				sepEnd++
			}
			wordEnd := sepEnd
			for wordEnd < len(line) && line[wordEnd] != ' ' {
				wordEnd++
			}
			sep := line[pos:sepEnd]
			word := line[sepEnd:wordEnd]
			if word == "" {
				break
			}
			switch {
			case col == i:
				// Start of a line; leading separators are
				// dropped.
				ret.WriteString(word)
				col += len(word)
			case col+len(sep)+len(word) >= budget:
				ret.WriteString("\n")
				ret.WriteString(indent)
				ret.WriteString(word)
				col = i + len(word)
			default:
				ret.WriteString(sep)
				ret.WriteString(word)
				col += len(sep) + len(word)
			}
			pos = wordEnd
		}
	}
	return ret.String()
}
