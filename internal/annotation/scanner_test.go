package annotation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoModules = `// @sub(a, b[1]);
module adder(input a, input b);
    wire a;
endmodule

// @main(*);

module main(input clk);

	reg [7:0] data;
endmodule
`

func TestScan_TwoModules(t *testing.T) {
	tokens, err := Scan(twoModules)
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	main, sub := tokens[0], tokens[1]
	assert.Greater(t, main.End, sub.End, "tokens must be sorted by descending end")

	assert.Equal(t, "main", main.Directive)
	assert.Equal(t, "main", main.Module)
	assert.Equal(t, []string{"*"}, main.Vars)
	assert.Equal(t, "\t", main.Indent)
	assert.True(t, strings.HasPrefix(twoModules[main.End:], EndKeyword))
	assert.True(t, strings.HasPrefix(twoModules[main.Start:], "// @main"))

	assert.Equal(t, "sub", sub.Directive)
	assert.Equal(t, "adder", sub.Module)
	assert.Equal(t, "a, b[1]", sub.RawVars)
	assert.Equal(t, []string{"a", "b[1]"}, sub.Vars)
	assert.Equal(t, "    ", sub.Indent)
	assert.Equal(t, 0, sub.Start)
	assert.Contains(t, sub.Body(twoModules), "wire a;")
	assert.NotContains(t, sub.Body(twoModules), EndKeyword)
}

func TestScan_HeaderVariants(t *testing.T) {
	testCases := []struct {
		name   string
		src    string
		module string
	}{
		{name: "no ports", src: "// @t();\nmodule t;\n  reg a;\nendmodule\n", module: "t"},
		{name: "parameter list", src: "// @t(a);\nmodule cnt #(parameter W = 8) (input clk);\n  reg a;\nendmodule\n", module: "cnt"},
		{name: "unindented body", src: "// @t(a);\nmodule flat(input a);\nreg a;\nendmodule\n", module: "flat"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tokens, err := Scan(tc.src)
			require.NoError(t, err)
			require.Len(t, tokens, 1)
			assert.Equal(t, tc.module, tokens[0].Module)
		})
	}
}

func TestScan_IgnoresNonDirectives(t *testing.T) {
	src := "// just a comment\nmodule m(input a);\n  wire a;\nendmodule\n  // @late(a);\nmodule n;\nendmodule\n"
	tokens, err := Scan(src)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestScan_MissingEndmodule(t *testing.T) {
	_, err := Scan("// @main(a);\nmodule main(input a);\n  wire a;\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endmodule")
}

func TestMarkOutput(t *testing.T) {
	testCases := []struct {
		name     string
		in       string
		expected string
	}{
		{
			name:     "display",
			in:       `    $display("hello");`,
			expected: `    $display("@::ost::_ \nhello\n@::oen::_ \n");`,
		},
		{
			name:     "monitor with arguments",
			in:       `$monitor("a=%d b=%b", a, b);`,
			expected: `$monitor("@::ost::_ \na=%d b=%b\n@::oen::_ \n", a, b);`,
		},
		{
			name:     "missing semicolon gains one",
			in:       `$display("x")`,
			expected: `$display("@::ost::_ \nx\n@::oen::_ \n");`,
		},
		{
			name:     "escaped quote stays inside literal",
			in:       `$display("say \"hi\"");`,
			expected: `$display("@::ost::_ \nsay \"hi\"\n@::oen::_ \n");`,
		},
		{
			name:     "two statements on one line",
			in:       `$display("a"); $display("b");`,
			expected: `$display("@::ost::_ \na\n@::oen::_ \n"); $display("@::ost::_ \nb\n@::oen::_ \n");`,
		},
		{
			name:     "nested call in arguments",
			in:       `$display("x=%d", f(a)); $monitor("y");`,
			expected: `$display("@::ost::_ \nx=%d\n@::oen::_ \n", f(a)); $monitor("@::ost::_ \ny\n@::oen::_ \n");`,
		},
		{
			name:     "other tasks untouched",
			in:       `$write("x"); $finish;`,
			expected: `$write("x"); $finish;`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MarkOutput(tc.in))
		})
	}
}
