package annotation

import "regexp"

// Trace name carried by free-output markers. The decoder only looks at the
// tag kind of these lines.
const OutputModule = "_"

// outputRegex matches a $display or $monitor call whose first argument is a
// string literal. The literal must be non-empty and its closing quote must
// not be escaped. The argument tail ends at the first ");" or at a ")" closing
// the line, so several statements on one line are each matched.
var outputRegex = regexp.MustCompile(`(?m)(\$display|\$monitor)\("(.*?[^\\])"(.*?)\)(?:;|[ \t]*$)`)

// The replacement keeps the original text between an output-start and an
// output-end line. The \n sequences are Verilog string escapes.
const outputReplacement = `${1}("@::ost::` + OutputModule + ` \n${2}\n@::oen::` + OutputModule + ` \n"${3});`

// MarkOutput wraps the string literal of every existing $display and
// $monitor statement in output markers, so that lines the designer prints
// are recorded as free output while the simulator's own chatter is not.
func MarkOutput(src string) string {
	return outputRegex.ReplaceAllString(src, outputReplacement)
}
