// Package protocol defines the line protocol spoken between instrumented
// simulations and the host, and decodes it.
//
// Every telemetry line has the form
//
//	@::<kind>::<trace> <payload>
//
// where kind is one of the three-letter Kind values below. Payload columns
// are joined with Separator. Any other line is free output.
package protocol

import (
	"fmt"
	"regexp"
	"strings"
)

// Prefix starts every telemetry line.
const Prefix = "@::"

// Separator joins columns inside a payload.
const Separator = " <@@> "

// Commands written back to the simulator's interactive prompt.
const (
	CommandContinue = "cont"
	CommandFinish   = "$finish"
)

// Kind identifies the event carried by a telemetry line.
type Kind string

const (
	KindHeader      Kind = "mod"
	KindValues      Kind = "mon"
	KindTick        Kind = "trk"
	KindInterrupt   Kind = "int"
	KindOutputStart Kind = "ost"
	KindOutputEnd   Kind = "oen"
)

var lineRegex = regexp.MustCompile(`^@::(.+?)::(\S+)(?: (.*))?$`)

// Line is a parsed telemetry line.
type Line struct {
	Kind    Kind
	Trace   string
	Payload string
}

// Columns splits the payload on Separator.
func (l Line) Columns() []string {
	return strings.Split(l.Payload, Separator)
}

// IsTagged reports whether text claims to be a telemetry line.
func IsTagged(text string) bool {
	return strings.HasPrefix(text, Prefix)
}

// ParseLine parses a telemetry line. ok is false when the line does not
// follow the tag convention.
func ParseLine(text string) (Line, bool) {
	m := lineRegex.FindStringSubmatch(text)
	if m == nil {
		return Line{}, false
	}
	return Line{Kind: Kind(m[1]), Trace: m[2], Payload: m[3]}, true
}

// Format renders a telemetry line; an empty payload is omitted.
func Format(kind Kind, trace, payload string) string {
	if payload == "" {
		return fmt.Sprintf("%s%s::%s", Prefix, kind, trace)
	}
	return fmt.Sprintf("%s%s::%s %s", Prefix, kind, trace, payload)
}
