// Package inject rewrites annotated Verilog modules so that they report
// their traced variables, advance a host-visible clock and, for the
// interrupt target, periodically hand control back to the host.
package inject

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/specialistvlad/vlgtrace/internal/annotation"
	"github.com/specialistvlad/vlgtrace/internal/protocol"
	"github.com/specialistvlad/vlgtrace/internal/signifier"
	"github.com/specialistvlad/vlgtrace/internal/vartable"
)

const (
	beginMarker = "// BEGIN < Injected Code >"
	endMarker   = "// END < Injected Code >"
)

// Options tune the generated statements.
type Options struct {
	Parser            signifier.Parser
	TickInterval      int
	InterruptInterval int
	// InterruptTarget is the trace name that receives the interrupt block.
	InterruptTarget string
}

// DefaultOptions returns the options used when no project file overrides them.
func DefaultOptions() Options {
	return Options{
		TickInterval:      1,
		InterruptInterval: 100,
		InterruptTarget:   "main",
	}
}

// Injector instruments source files.
type Injector struct {
	opts Options
}

// New returns an Injector. Non-positive intervals fall back to the defaults.
func New(opts Options) *Injector {
	def := DefaultOptions()
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.InterruptInterval <= 0 {
		opts.InterruptInterval = def.InterruptInterval
	}
	return &Injector{opts: opts}
}

// Transpile instruments every annotated module of one source file. Carriage
// returns are dropped and existing output statements are wrapped in output
// markers first. Any invalid variable reference fails the whole file.
func (inj *Injector) Transpile(src string) (string, error) {
	src = strings.ReplaceAll(src, "\r", "")
	src = annotation.MarkOutput(src)

	tokens, err := annotation.Scan(src)
	if err != nil {
		return "", err
	}

	// Tokens arrive by descending End, so each splice lands after every
	// offset still pending.
	for _, tok := range tokens {
		table := vartable.Build(tok.Body(src))
		tracked, err := inj.opts.Parser.Resolve(tok.Vars, tok.Module, table)
		if err != nil {
			return "", errors.Wrapf(err, "module %s", tok.Module)
		}
		src = src[:tok.End] + inj.Block(tok, tracked) + src[tok.End:]
	}
	return src, nil
}

// Block returns the text inserted before the token's closing keyword.
func (inj *Injector) Block(tok annotation.Token, tracked []signifier.Tracked) string {
	lines := []string{beginMarker}
	if len(tracked) > 0 {
		lines = append(lines,
			"initial begin",
			tok.Indent+Snapshot(tok.Directive, tracked),
			tok.Indent+Monitor(tok.Directive, tracked),
			"end",
		)
	}
	if tok.Directive == inj.opts.InterruptTarget {
		lines = append(lines, Interrupt(tok.Directive, inj.opts.InterruptInterval, tok.Indent)...)
	}
	lines = append(lines, Tick(tok.Directive, inj.opts.TickInterval), endMarker)

	for i, l := range lines {
		lines[i] = tok.Indent + l
	}
	return "\n" + strings.Join(lines, "\n") + "\n"
}

// Snapshot prints the header row once: each tracked name with its format tag.
func Snapshot(trace string, tracked []signifier.Tracked) string {
	cols := make([]string, len(tracked))
	for i, v := range tracked {
		cols[i] = fmt.Sprintf("%s[%s]", v.DisplayName, v.Format.Tag())
	}
	return fmt.Sprintf(`$display("%s");`, protocol.Format(protocol.KindHeader, trace, strings.Join(cols, protocol.Separator)))
}

// Monitor prints every tracked value whenever one of them changes.
func Monitor(trace string, tracked []signifier.Tracked) string {
	verbs := make([]string, len(tracked))
	names := make([]string, len(tracked))
	for i, v := range tracked {
		verbs[i] = v.Format.Verb()
		names[i] = v.DisplayName
	}
	return fmt.Sprintf(`$monitor("%s", %s);`,
		protocol.Format(protocol.KindValues, trace, strings.Join(verbs, protocol.Separator)),
		strings.Join(names, ", "))
}

// Tick advances the host's logical clock every interval time units.
func Tick(trace string, interval int) string {
	return fmt.Sprintf(`always #%d $display("%s", $time);`, interval, protocol.Format(protocol.KindTick, trace, "%0d"))
}

// Interrupt halts the simulation every interval time units after announcing it.
func Interrupt(trace string, interval int, indent string) []string {
	return []string{
		fmt.Sprintf("always #%d begin", interval),
		indent + fmt.Sprintf(`$display("%s");`, protocol.Format(protocol.KindInterrupt, trace, fmt.Sprint(interval))),
		indent + "$stop;",
		"end",
	}
}
