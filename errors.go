package xmltree

import (
	"fmt"
	"strings"
)

// SyntaxError describes a failure to parse or evaluate an XPath
// expression: what went wrong, where (0-based byte offset into the
// expression) and, when a near-miss is recognizable, what was probably
// meant.
type SyntaxError struct {
	Msg        string
	Offset     int
	Expr       string
	Suggestion string
}

// Error renders the message together with the expression and a caret at
// the offending offset:
//
//	xpath: missing closing bracket at offset 9
//	  //item[@id
//	           ^
func (e *SyntaxError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "xpath: %s at offset %d", e.Msg, e.Offset)
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean %q?)", e.Suggestion)
	}
	if e.Expr != "" {
		caret := e.Offset
		if caret > len(e.Expr) {
			caret = len(e.Expr)
		}
		fmt.Fprintf(&b, "\n  %s\n  %s^", e.Expr, strings.Repeat(" ", caret))
	}
	return b.String()
}

func syntaxErrf(expr string, offset int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Offset: offset, Expr: expr}
}

// editDistance is the Levenshtein distance between a and b, used for
// nearest-match suggestions on unknown axis names.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, min(cur[j-1]+1, prev[j-1]+cost))
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// suggest returns the candidate closest to name, or "" when nothing is
// within a distance of 3.
func suggest(name string, candidates []string) string {
	best, bestDist := "", 4
	for _, c := range candidates {
		if d := editDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
