package signifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/specialistvlad/vlgtrace/internal/vartable"
)

// Wildcard selects every variable the module declares.
const Wildcard = "*"

// signifierRegex splits a reference into name, bracket body and type.
var signifierRegex = regexp.MustCompile(`^\s*([^\[\]:\s]*)\s*(?:\[([^\[\]]*)\])?\s*(?::(.*))?$`)

// RangeOrder constrains how toIndex relates to index in name[index:toIndex].
type RangeOrder int

const (
	// AnyOrder accepts toIndex on either side of index.
	AnyOrder RangeOrder = iota
	// Descending requires toIndex <= index, as in bus[7:0].
	Descending
	// Ascending requires toIndex >= index, as in bus[0:7].
	Ascending
)

// ParseRangeOrder converts a configuration value to a RangeOrder.
func ParseRangeOrder(s string) (RangeOrder, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return AnyOrder, nil
	case "descending", "desc":
		return Descending, nil
	case "ascending", "asc":
		return Ascending, nil
	default:
		return AnyOrder, fmt.Errorf("unknown range order %q: must be 'any', 'descending' or 'ascending'", s)
	}
}

func (o RangeOrder) allows(index, toIndex int) bool {
	switch o {
	case Descending:
		return toIndex <= index
	case Ascending:
		return toIndex >= index
	default:
		return true
	}
}

// Signifier is a parsed and validated variable reference.
type Signifier struct {
	Name    string
	Index   *int
	ToIndex *int
	Format  Format
}

// Tracked is a reference resolved against the module, ready for code generation.
type Tracked struct {
	DisplayName string
	Format      Format
}

// Parser validates references. The zero value accepts any range order.
type Parser struct {
	Order RangeOrder
}

// Parse validates one reference against the variables of its module.
func (p Parser) Parse(raw, module string, table *vartable.Table) (*Signifier, error) {
	fail := func(reason error, detail string, args ...any) error {
		return &Error{Reason: reason, Signifier: raw, Module: module, Detail: fmt.Sprintf(detail, args...)}
	}

	m := signifierRegex.FindStringSubmatchIndex(raw)
	if m == nil {
		return nil, fail(ErrMalformed, usage)
	}
	group := func(i int) (string, bool) {
		if m[2*i] < 0 {
			return "", false
		}
		return strings.TrimSpace(raw[m[2*i]:m[2*i+1]]), true
	}

	name, _ := group(1)
	if name == "" {
		return nil, fail(ErrMissingName, usage)
	}
	sig := &Signifier{Name: name, Format: Binary}

	if body, ok := group(2); ok {
		idxStr, toStr, hasTo := strings.Cut(body, ":")
		idx, ok := parseIndex(idxStr)
		if !ok {
			return nil, fail(ErrInvalidIndex, "index %q must be a non-negative integer", strings.TrimSpace(idxStr))
		}
		sig.Index = &idx

		if hasTo {
			to, ok := parseIndex(toStr)
			if !ok {
				return nil, fail(ErrInvalidToIndex, "toIndex %q must be a non-negative integer", strings.TrimSpace(toStr))
			}
			if !p.Order.allows(idx, to) {
				return nil, fail(ErrInvalidToIndex, "toIndex %d is not allowed after index %d", to, idx)
			}
			sig.ToIndex = &to
		}
	}

	if alias, ok := group(3); ok {
		f, known := LookupFormat(alias)
		if !known {
			return nil, fail(ErrUnknownType, "type %q must be one of [ %s ]", alias, aliasList())
		}
		sig.Format = f
	}

	v, ok := table.Lookup(name)
	if !ok {
		return nil, fail(ErrUnknownVariable, "variable %q is not declared", name)
	}

	if sig.Index != nil {
		if err := checkBound(v, *sig.Index); err != nil {
			return nil, fail(err, "%s", boundDetail(v, *sig.Index, "index"))
		}
	}
	if sig.ToIndex != nil {
		if err := checkBound(v, *sig.ToIndex); err != nil {
			return nil, fail(err, "%s", boundDetail(v, *sig.ToIndex, "toIndex"))
		}
	}

	return sig, nil
}

// Track turns a validated signifier into the name and format printed by the
// generated code. Index suffixes are kept only for vector variables.
func (s *Signifier) Track(table *vartable.Table) Tracked {
	v, _ := table.Lookup(s.Name)
	name := s.Name
	if v.IsVector() && s.Index != nil {
		if s.ToIndex != nil {
			name = fmt.Sprintf("%s[%d:%d]", s.Name, *s.Index, *s.ToIndex)
		} else {
			name = fmt.Sprintf("%s[%d]", s.Name, *s.Index)
		}
	}
	return Tracked{DisplayName: name, Format: s.Format}
}

// Resolve parses every entry of a directive's variable list. Explicit
// references come first, in order; a wildcard then appends every declared
// variable as binary. Empty entries are ignored.
func (p Parser) Resolve(refs []string, module string, table *vartable.Table) ([]Tracked, error) {
	var (
		tracked  []Tracked
		wildcard bool
	)
	for _, raw := range refs {
		switch strings.TrimSpace(raw) {
		case "":
			continue
		case Wildcard:
			wildcard = true
			continue
		}
		sig, err := p.Parse(raw, module, table)
		if err != nil {
			return nil, err
		}
		tracked = append(tracked, sig.Track(table))
	}
	if wildcard {
		for _, name := range table.Names() {
			tracked = append(tracked, Tracked{DisplayName: name, Format: Binary})
		}
	}
	return tracked, nil
}

func checkBound(v vartable.Descriptor, i int) error {
	if !v.IsVector() {
		if i != 0 {
			return ErrNotAVector
		}
		return nil
	}
	if !v.Range.Contains(i) {
		return ErrIndexOutOfRange
	}
	return nil
}

func boundDetail(v vartable.Descriptor, i int, what string) string {
	if !v.IsVector() {
		return fmt.Sprintf("variable %q is not a vector; cannot access %s %d", v.Name, what, i)
	}
	side := "high"
	if i < v.Range.Min {
		side = "low"
	}
	return fmt.Sprintf("%s for variable %q must be in range [%d, %d]; %d is too %s", what, v.Name, v.Range.Min, v.Range.Max, i, side)
}

// parseIndex accepts only plain decimal digits.
func parseIndex(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func aliasList() string {
	return "bool bit binary %b int integer %d float number %f hex %h"
}
