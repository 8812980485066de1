// Package vartable extracts the variables a Verilog module declares, one
// declaration per line, so that trace references can be validated against
// them.
package vartable

import (
	"strconv"
	"strings"
)

// kinds is the set of storage kinds recognized as variable declarations.
var kinds = map[string]struct{}{
	"wire":     {},
	"reg":      {},
	"time":     {},
	"realtime": {},
	"real":     {},
	"integer":  {},
}

// BitRange is the declared [Start:End] of a vector variable.
type BitRange struct {
	Start int
	End   int
	Min   int
	Max   int
}

// NewBitRange builds a BitRange with Min and Max ordered from start and end.
func NewBitRange(start, end int) *BitRange {
	return &BitRange{Start: start, End: end, Min: min(start, end), Max: max(start, end)}
}

// Contains reports whether i lies within [Min, Max].
func (r *BitRange) Contains(i int) bool {
	return i >= r.Min && i <= r.Max
}

// Descriptor describes a single declared variable. Range is nil for scalars.
type Descriptor struct {
	Name  string
	Kind  string
	Range *BitRange
}

// IsVector reports whether the variable was declared with a bit range.
func (d Descriptor) IsVector() bool {
	return d.Range != nil
}

// Table maps declared variable names to their descriptors and remembers the
// order in which names were first declared.
type Table struct {
	names []string
	vars  map[string]Descriptor
}

// New returns an empty table.
func New() *Table {
	return &Table{vars: make(map[string]Descriptor)}
}

// Add records a descriptor. A redeclared name keeps its original position.
func (t *Table) Add(d Descriptor) {
	if _, exists := t.vars[d.Name]; !exists {
		t.names = append(t.names, d.Name)
	}
	t.vars[d.Name] = d
}

// Lookup returns the descriptor for name.
func (t *Table) Lookup(name string) (Descriptor, bool) {
	d, ok := t.vars[name]
	return d, ok
}

// Names returns the declared names in declaration order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Len returns the number of declared variables.
func (t *Table) Len() int {
	return len(t.names)
}

// Build scans the text of one module body and returns the variables it
// declares. Lines that are not recognized declarations are skipped.
func Build(module string) *Table {
	t := New()
	for _, line := range strings.Split(module, "\n") {
		for _, d := range parseLine(line) {
			t.Add(d)
		}
	}
	return t
}

// parseLine returns the descriptors declared by a single line, or nil.
func parseLine(line string) []Descriptor {
	line = strings.TrimLeft(line, " \t")
	line = stripDirection(line)

	kind, rest := splitKind(line)
	if _, ok := kinds[kind]; !ok {
		return nil
	}
	rest = skipSignedness(strings.TrimLeft(rest, " \t"))

	var bits *BitRange
	if strings.HasPrefix(rest, "[") {
		closeIdx := strings.IndexByte(rest, ']')
		if closeIdx < 0 {
			return nil
		}
		r, ok := parseRange(rest[1:closeIdx])
		if !ok {
			return nil
		}
		bits = r
		rest = rest[closeIdx+1:]
	}

	semi := strings.IndexByte(rest, ';')
	if semi < 0 {
		return nil
	}

	var out []Descriptor
	for _, raw := range strings.Split(rest[:semi], ",") {
		name := declaredName(raw)
		if name == "" {
			continue
		}
		if !isIdentifier(name) {
			return nil
		}
		out = append(out, Descriptor{Name: name, Kind: kind, Range: bits})
	}
	return out
}

// skipSignedness drops a leading signed or unsigned keyword.
func skipSignedness(rest string) string {
	for _, kw := range []string{"signed", "unsigned"} {
		after, ok := strings.CutPrefix(rest, kw)
		if ok && (after == "" || strings.IndexByte(" \t[", after[0]) >= 0) {
			return strings.TrimLeft(after, " \t")
		}
	}
	return rest
}

func stripDirection(line string) string {
	for _, dir := range []string{"input", "output"} {
		if strings.HasPrefix(line, dir) && len(line) > len(dir) && (line[len(dir)] == ' ' || line[len(dir)] == '\t') {
			return strings.TrimLeft(line[len(dir):], " \t")
		}
	}
	return line
}

// splitKind returns the leading word, ending at whitespace or '['.
func splitKind(line string) (string, string) {
	end := strings.IndexAny(line, " \t[")
	if end < 0 {
		return line, ""
	}
	return line[:end], line[end:]
}

func parseRange(field string) (*BitRange, bool) {
	start, end, ok := strings.Cut(field, ":")
	if !ok {
		return nil, false
	}
	s, err := strconv.Atoi(strings.TrimSpace(start))
	if err != nil {
		return nil, false
	}
	e, err := strconv.Atoi(strings.TrimSpace(end))
	if err != nil {
		return nil, false
	}
	return NewBitRange(s, e), true
}

// declaredName trims an initializer or unpacked dimension from a name.
func declaredName(raw string) string {
	if i := strings.IndexAny(raw, "=["); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

func isIdentifier(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r == '$' || r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return name != ""
}
