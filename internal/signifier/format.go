package signifier

import (
	"fmt"
	"strings"
)

// Format is the display format used when tracing a variable.
type Format int

const (
	Binary Format = iota
	Integer
	Float
	Hex
)

// aliases maps every accepted type spelling (lower case) to its Format.
var aliases = map[string]Format{
	"bool":   Binary,
	"bit":    Binary,
	"binary": Binary,
	"%b":     Binary,

	"int":     Integer,
	"integer": Integer,
	"%d":      Integer,

	"float":  Float,
	"number": Float,
	"%f":     Float,

	"hex": Hex,
	"%h":  Hex,
}

// LookupFormat resolves a type alias, ignoring case.
func LookupFormat(alias string) (Format, bool) {
	f, ok := aliases[strings.ToLower(alias)]
	return f, ok
}

// Verb returns the $display format specifier, e.g. "%b".
func (f Format) Verb() string {
	switch f {
	case Integer:
		return "%d"
	case Float:
		return "%f"
	case Hex:
		return "%H"
	default:
		return "%b"
	}
}

// Tag returns the specifier without its percent sign, as written in header rows.
func (f Format) Tag() string {
	return strings.TrimPrefix(f.Verb(), "%")
}

func (f Format) String() string {
	switch f {
	case Binary:
		return "binary"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Hex:
		return "hex"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}
