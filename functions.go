package xmltree

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

type builtinFunc func(ctx evalContext, args [][]any) ([]any, error)

// builtinSpec pairs a builtin with its arity bounds. maxArgs < 0 means
// variadic (concat).
type builtinSpec struct {
	minArgs int
	maxArgs int
	fn      builtinFunc
}

func (s builtinSpec) checkArity(name string, n int) *SyntaxError {
	if n >= s.minArgs && (s.maxArgs < 0 || n <= s.maxArgs) {
		return nil
	}
	var msg string
	switch {
	case s.maxArgs < 0:
		msg = fmt.Sprintf("%s() requires at least %d arguments", name, s.minArgs)
	case s.minArgs == s.maxArgs && s.minArgs == 1:
		msg = fmt.Sprintf("%s() requires 1 argument", name)
	case s.minArgs == s.maxArgs:
		msg = fmt.Sprintf("%s() requires %d arguments", name, s.minArgs)
	default:
		msg = fmt.Sprintf("%s() requires %d to %d arguments", name, s.minArgs, s.maxArgs)
	}
	return &SyntaxError{Msg: msg}
}

var builtins = map[string]builtinSpec{
	"text":             {0, 0, fnText},
	"position":         {0, 0, fnPosition},
	"last":             {0, 0, fnLast},
	"count":            {1, 1, fnCount},
	"sum":              {1, 1, fnSum},
	"number":           {0, 1, fnNumber},
	"round":            {1, 1, fnRound},
	"floor":            {1, 1, fnFloor},
	"ceiling":          {1, 1, fnCeiling},
	"boolean":          {1, 1, fnBoolean},
	"true":             {0, 0, fnTrue},
	"false":            {0, 0, fnFalse},
	"not":              {1, 1, fnNot},
	"lang":             {1, 1, fnLang},
	"contains":         {2, 2, fnContains},
	"starts-with":      {2, 2, fnStartsWith},
	"ends-with":        {2, 2, fnEndsWith},
	"string-length":    {0, 1, fnStringLength},
	"substring":        {2, 3, fnSubstring},
	"substring-before": {2, 2, fnSubstringBefore},
	"substring-after":  {2, 2, fnSubstringAfter},
	"concat":           {2, -1, fnConcat},
	"normalize-space":  {0, 1, fnNormalizeSpace},
	"translate":        {3, 3, fnTranslate},
}

// builtinNames is the candidate list for unknown-function suggestions.
var builtinNames = func() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}()

// contextString is the implicit string argument of the one-argument
// string functions when called with none.
func contextString(ctx evalContext) string {
	return stringValue(ctx.node)
}

func fnText(ctx evalContext, _ [][]any) ([]any, error) {
	if ctx.node == nil {
		return []any{""}, nil
	}
	return []any{ctx.node.Text}, nil
}

func fnPosition(ctx evalContext, _ [][]any) ([]any, error) {
	return []any{float64(ctx.position)}, nil
}

func fnLast(ctx evalContext, _ [][]any) ([]any, error) {
	return []any{float64(ctx.size)}, nil
}

func fnCount(_ evalContext, args [][]any) ([]any, error) {
	return []any{float64(len(args[0]))}, nil
}

func fnSum(_ evalContext, args [][]any) ([]any, error) {
	total := 0.0
	for _, item := range args[0] {
		total += itemNumber(item)
	}
	return []any{total}, nil
}

func fnNumber(ctx evalContext, args [][]any) ([]any, error) {
	if len(args) == 0 {
		return []any{toNumber([]any{contextString(ctx)})}, nil
	}
	return []any{toNumber(args[0])}, nil
}

// fnRound rounds half up, the XPath rule: round(-0.5) is 0, not -1.
func fnRound(_ evalContext, args [][]any) ([]any, error) {
	v := toNumber(args[0])
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []any{v}, nil
	}
	return []any{math.Floor(v + 0.5)}, nil
}

func fnFloor(_ evalContext, args [][]any) ([]any, error) {
	return []any{math.Floor(toNumber(args[0]))}, nil
}

func fnCeiling(_ evalContext, args [][]any) ([]any, error) {
	return []any{math.Ceil(toNumber(args[0]))}, nil
}

func fnBoolean(_ evalContext, args [][]any) ([]any, error) {
	return []any{toBool(args[0])}, nil
}

func fnTrue(_ evalContext, _ [][]any) ([]any, error) {
	return []any{true}, nil
}

func fnFalse(_ evalContext, _ [][]any) ([]any, error) {
	return []any{false}, nil
}

func fnNot(_ evalContext, args [][]any) ([]any, error) {
	return []any{!toBool(args[0])}, nil
}

// fnLang checks the nearest xml:lang declaration on the context node or
// its ancestors against the argument, matching exact tags and their
// sub-tags ("en" matches lang="en-US").
func fnLang(ctx evalContext, args [][]any) ([]any, error) {
	want := toString(args[0])
	for n := ctx.node; n != nil; n = n.Parent {
		if have, ok := n.GetAttribute("xml:lang"); ok {
			return []any{langMatches(have, want)}, nil
		}
	}
	return []any{false}, nil
}

func langMatches(have, want string) bool {
	if want == "" {
		return false
	}
	if strings.EqualFold(have, want) {
		return true
	}
	ht, herr := language.Parse(have)
	wt, werr := language.Parse(want)
	if herr == nil && werr == nil {
		hs := strings.ToLower(ht.String())
		ws := strings.ToLower(wt.String())
		if hs == ws || strings.HasPrefix(hs, ws+"-") {
			return true
		}
	}
	return strings.HasPrefix(strings.ToLower(have), strings.ToLower(want)+"-")
}

func fnContains(_ evalContext, args [][]any) ([]any, error) {
	return []any{strings.Contains(toString(args[0]), toString(args[1]))}, nil
}

func fnStartsWith(_ evalContext, args [][]any) ([]any, error) {
	return []any{strings.HasPrefix(toString(args[0]), toString(args[1]))}, nil
}

func fnEndsWith(_ evalContext, args [][]any) ([]any, error) {
	return []any{strings.HasSuffix(toString(args[0]), toString(args[1]))}, nil
}

func fnStringLength(ctx evalContext, args [][]any) ([]any, error) {
	s := contextString(ctx)
	if len(args) > 0 {
		s = toString(args[0])
	}
	return []any{float64(len([]rune(s)))}, nil
}

// fnSubstring follows the XPath character model: positions are 1-based,
// start and length round half up, and a character is kept when its
// position lies in [round(start), round(start)+round(length)). NaN
// bounds yield the empty string.
func fnSubstring(_ evalContext, args [][]any) ([]any, error) {
	runes := []rune(toString(args[0]))
	start := toNumber(args[1])
	if math.IsNaN(start) {
		return []any{""}, nil
	}
	start = math.Floor(start + 0.5)

	end := math.Inf(1)
	if len(args) == 3 {
		length := toNumber(args[2])
		if math.IsNaN(length) {
			return []any{""}, nil
		}
		end = start + math.Floor(length+0.5)
	}

	var b strings.Builder
	for i, r := range runes {
		pos := float64(i + 1)
		if pos >= start && pos < end {
			b.WriteRune(r)
		}
	}
	return []any{b.String()}, nil
}

func fnSubstringBefore(_ evalContext, args [][]any) ([]any, error) {
	s, sep := toString(args[0]), toString(args[1])
	if i := strings.Index(s, sep); i >= 0 {
		return []any{s[:i]}, nil
	}
	return []any{""}, nil
}

func fnSubstringAfter(_ evalContext, args [][]any) ([]any, error) {
	s, sep := toString(args[0]), toString(args[1])
	if i := strings.Index(s, sep); i >= 0 {
		return []any{s[i+len(sep):]}, nil
	}
	return []any{""}, nil
}

func fnConcat(_ evalContext, args [][]any) ([]any, error) {
	var b strings.Builder
	for _, arg := range args {
		b.WriteString(toString(arg))
	}
	return []any{b.String()}, nil
}

func fnNormalizeSpace(ctx evalContext, args [][]any) ([]any, error) {
	s := contextString(ctx)
	if len(args) > 0 {
		s = toString(args[0])
	}
	return []any{strings.Join(strings.Fields(s), " ")}, nil
}

// fnTranslate maps characters of the first argument through the
// from/to alphabets; from-characters with no to-counterpart are
// deleted, repeated from-characters keep their first mapping.
func fnTranslate(_ evalContext, args [][]any) ([]any, error) {
	s := toString(args[0])
	from := []rune(toString(args[1]))
	to := []rune(toString(args[2]))

	mapping := make(map[rune]rune, len(from))
	deleted := make(map[rune]bool)
	for i, r := range from {
		if _, seen := mapping[r]; seen || deleted[r] {
			continue
		}
		if i < len(to) {
			mapping[r] = to[i]
		} else {
			deleted[r] = true
		}
	}

	var b strings.Builder
	for _, r := range s {
		if deleted[r] {
			continue
		}
		if repl, ok := mapping[r]; ok {
			b.WriteRune(repl)
			continue
		}
		b.WriteRune(r)
	}
	return []any{b.String()}, nil
}
