// Package annotation finds trace directives in Verilog source and prepares
// the source so that designer output can be told apart from injected
// telemetry.
//
// A directive is a line comment placed directly above a module header:
//
//	// @main(clk, data[7:0]:hex, *);
//	module top(input clk);
//	    reg [7:0] data;
//	    ...
//	endmodule
//
// The directive name becomes the trace name used in every protocol line the
// module emits. Blank lines may separate the directive, the header and the
// first body line; the first body line's indentation is reused for injected
// code.
package annotation

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// EndKeyword closes a module body.
const EndKeyword = "endmodule"

var directiveRegex = regexp.MustCompile(`(?m)^// @(.*?)\((.*?)\);$\n+module\s+([A-Za-z_][A-Za-z0-9_$]*)\s*(?:#\s*\(.*?\)\s*)?(?:\(.*\))?\s*;[ \t]*\n+([ \t]*)`)

// Token is one directive bound to the module that follows it.
type Token struct {
	// Directive is the trace name written after '@'.
	Directive string
	// RawVars is the text between the directive's parentheses.
	RawVars string
	// Vars is RawVars split on commas with surrounding space trimmed.
	Vars []string
	// Module is the name from the module header.
	Module string
	// Start is the byte offset of the directive.
	Start int
	// End is the byte offset of the module's closing keyword.
	End int
	// Indent is the leading whitespace of the first body line.
	Indent string
}

// Body returns the source covered by the token, from the directive up to
// but not including the closing keyword.
func (t Token) Body(src string) string {
	return src[t.Start:t.End]
}

// Scan returns every directive in src, sorted by descending End so that
// splicing text at one token's End never shifts the offsets of the tokens
// still to be processed.
func Scan(src string) ([]Token, error) {
	var tokens []Token
	for _, m := range directiveRegex.FindAllStringSubmatchIndex(src, -1) {
		start := m[0]
		rel := strings.Index(src[start:], EndKeyword)
		if rel < 0 {
			return nil, errors.Errorf("directive at offset %d for module %q has no %s", start, src[m[6]:m[7]], EndKeyword)
		}

		raw := src[m[4]:m[5]]
		tokens = append(tokens, Token{
			Directive: src[m[2]:m[3]],
			RawVars:   raw,
			Vars:      splitVars(raw),
			Module:    src[m[6]:m[7]],
			Start:     start,
			End:       start + rel,
			Indent:    src[m[8]:m[9]],
		})
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].End > tokens[j].End
	})
	return tokens, nil
}

func splitVars(raw string) []string {
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
