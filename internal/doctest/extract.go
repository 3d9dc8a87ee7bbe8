// Package doctest turns documented symbols into runnable examples and decides
// whether each example passes.
package doctest

import (
	"regexp"
	"strings"

	"github.com/mvp-joe/jsdoctest/internal/docmodel"
)

// markerPattern matches the line separating an example's invocation from its
// expected outcome, e.g. "// => 3" or "  //=>3".
var markerPattern = regexp.MustCompile(`(?m)^\s*//\s*=>\s*`)

// Example is one runnable @example tag.
type Example struct {
	// Invocation is the code before the marker, trimmed.
	Invocation string `json:"invocation"`

	// Expected is everything after the marker, verbatim.
	Expected string `json:"expected"`

	// Raw is the untouched tag text, used as the example's label.
	Raw string `json:"raw"`
}

// Definition groups the runnable examples of one symbol.
type Definition struct {
	SymbolName string            `json:"symbolName"`
	Location   docmodel.Location `json:"location"`
	Examples   []Example         `json:"examples"`
}

// Extract flattens symbols into definitions. Class symbols are replaced by
// their members in declared order; tags without a marker and symbols without
// a usable example are skipped silently.
func Extract(symbols []docmodel.Symbol) []Definition {
	var defs []Definition
	for _, sym := range flatten(symbols) {
		if len(sym.Examples) == 0 {
			continue
		}

		examples := make([]Example, 0, len(sym.Examples))
		for _, raw := range sym.Examples {
			if ex, ok := ParseExample(raw); ok {
				examples = append(examples, ex)
			}
		}
		if len(examples) == 0 {
			continue
		}

		defs = append(defs, Definition{
			SymbolName: sym.Name,
			Location:   sym.Location,
			Examples:   examples,
		})
	}
	return defs
}

func flatten(symbols []docmodel.Symbol) []docmodel.Symbol {
	out := make([]docmodel.Symbol, 0, len(symbols))
	for _, sym := range symbols {
		if sym.Kind == docmodel.KindClass {
			out = append(out, sym.Members...)
			continue
		}
		out = append(out, sym)
	}
	return out
}

// ParseExample splits raw at the first marker line. It reports false when the
// text has no marker, which means the tag is not a test.
func ParseExample(raw string) (Example, bool) {
	loc := markerPattern.FindStringIndex(raw)
	if loc == nil {
		return Example{}, false
	}
	return Example{
		Invocation: strings.TrimSpace(raw[:loc[0]]),
		Expected:   raw[loc[1]:],
		Raw:        raw,
	}, true
}
