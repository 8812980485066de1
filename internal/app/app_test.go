package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/vlgtrace/internal/config"
	"github.com/specialistvlad/vlgtrace/internal/testutil"
)

const annotated = "// @main(clk);\n" +
	"module main;\n" +
	"  reg clk;\n" +
	"  initial $display(\"hello\");\n" +
	"endmodule\n"

// fakeSimulator speaks the trace protocol and obeys interrupt commands.
const fakeSimulator = `
echo "@::mod::main clk[b]"
echo "@::ost::_ "
echo "hello"
echo "@::oen::_ "
i=1
while [ $i -le 10 ]; do
  echo "@::trk::main $i"
  echo "@::mon::main $((i % 2))"
  echo "@::int::main 100"
  read cmd
  [ "$cmd" = "cont" ] || exit 0
  i=$((i + 1))
done
`

func setupApp(t *testing.T, compile, simulate bool, compilerBody string) (*App, string, *testutil.SafeBuffer) {
	t.Helper()

	dir := testutil.Workspace(t, map[string]string{"main.v": annotated})
	compiler := testutil.Script(t, dir, "compiler.sh", compilerBody)
	simulator := testutil.Script(t, dir, "simulator.sh", fakeSimulator)
	project := fmt.Sprintf("build {\n  compiler = %q\n}\n\nsimulation {\n  simulator      = %q\n  max_interrupts = 2\n}\n", compiler, simulator)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(project), 0o644))

	appConfig, err := NewConfig(Config{
		Dir:       dir,
		Compile:   compile,
		Simulate:  simulate,
		LogLevel:  "debug",
		LogFormat: "text",
	})
	require.NoError(t, err)

	logBuffer := &testutil.SafeBuffer{}
	testutil.DumpLogs(t, logBuffer)

	a, err := NewApp(context.Background(), logBuffer, appConfig, config.NewLoader())
	require.NoError(t, err)
	t.Cleanup(func() { a.Shutdown(context.Background()) })
	return a, dir, logBuffer
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_CompileAndSimulate(t *testing.T) {
	a, dir, logs := setupApp(t, true, true, "exit 0\n")

	require.NoError(t, a.Run(context.Background()))

	transpiled := readFile(t, filepath.Join(dir, "temp", "build", "main.v"))
	assert.Contains(t, transpiled, `$display("@::mod::main clk[b]");`)
	assert.Contains(t, transpiled, `$display("@::int::main 100");`)

	runDir := filepath.Join(dir, "temp", "sim", "runs", "run-0")
	assert.Equal(t, "@time,clk[b]\n1,1\n2,0\n", readFile(t, filepath.Join(runDir, "main.csv")))
	assert.Equal(t, "0:hello\n", readFile(t, filepath.Join(runDir, "_out.log")))
	assert.FileExists(t, filepath.Join(runDir, "meta.json"))
	assert.Equal(t, "0", readFile(t, filepath.Join(dir, "temp", "sim", "lr.txt")))
	assert.Contains(t, readFile(t, filepath.Join(dir, "temp", "sim", "run.json")), `"maxItt": 2`)

	assert.Contains(t, logs.String(), "> hello")
	assert.Contains(t, logs.String(), "Simulation finished.")
}

func TestRun_SecondRunGetsNextIndex(t *testing.T) {
	a, dir, _ := setupApp(t, false, true, "exit 0\n")

	require.NoError(t, a.Run(context.Background()))
	require.NoError(t, a.Run(context.Background()))

	assert.DirExists(t, filepath.Join(dir, "temp", "sim", "runs", "run-1"))
	assert.Equal(t, "1", readFile(t, filepath.Join(dir, "temp", "sim", "lr.txt")))
}

func TestRun_CompilerOutputFailsBuild(t *testing.T) {
	a, dir, _ := setupApp(t, true, true, "echo 'main.v:2: error: oops'\n")

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build failed")
	assert.Contains(t, err.Error(), "oops")
	assert.NoDirExists(t, filepath.Join(dir, "temp", "sim", "runs", "run-0"), "simulation must not start")
}

func TestRun_MissingSimulator(t *testing.T) {
	a, _, _ := setupApp(t, false, true, "exit 0\n")
	a.project.Simulation.Simulator = filepath.Join(t.TempDir(), "no-such-simulator")

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting simulator")
}

func TestShutdown_RefusesNewSimulations(t *testing.T) {
	a, _, _ := setupApp(t, false, true, "exit 0\n")
	a.Shutdown(context.Background())

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminated")
}

func TestNewApp_InvalidProjectFile(t *testing.T) {
	dir := testutil.Workspace(t, map[string]string{config.FileName: "build {"})
	appConfig, err := NewConfig(Config{Dir: dir, Compile: true})
	require.NoError(t, err)

	_, err = NewApp(context.Background(), &testutil.SafeBuffer{}, appConfig, config.NewLoader())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestNewConfig_Validation(t *testing.T) {
	_, err := NewConfig(Config{Compile: true})
	require.Error(t, err)

	_, err = NewConfig(Config{Dir: "."})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to do")
}

func TestHealthHandler(t *testing.T) {
	a, _, _ := setupApp(t, true, false, "exit 0\n")

	rec := httptest.NewRecorder()
	a.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}
