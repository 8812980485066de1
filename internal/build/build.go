// Package build turns a directory of annotated Verilog sources into a
// compiled simulation: each source is transpiled into the build directory and
// the results are handed to the compiler in one invocation.
package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/vlgtrace/internal/ctxlog"
	"github.com/specialistvlad/vlgtrace/internal/fsutil"
	"github.com/specialistvlad/vlgtrace/internal/inject"
)

// Transpiler rewrites one source file.
type Transpiler interface {
	Transpile(src string) (string, error)
}

// CompileFunc runs the compiler. Any output it produces is reported back as
// a failure.
type CompileFunc func(ctx context.Context, name string, args []string) (output []byte, err error)

// Options configures a Builder. Relative paths are resolved against Dir.
type Options struct {
	Dir        string
	SourceDir  string
	BuildDir   string
	Extensions []string
	Output     string
	Compiler   string
	Transpiler Transpiler
	Compile    CompileFunc
}

// DefaultOptions mirrors the defaults of the project file's build block.
func DefaultOptions() Options {
	return Options{
		SourceDir:  ".",
		BuildDir:   filepath.Join("temp", "build"),
		Extensions: []string{"v"},
		Output:     "vlg.out",
		Compiler:   "iverilog",
	}
}

// Builder runs the transpile and compile steps.
type Builder struct {
	opts Options
}

// New returns a Builder. A nil Transpiler uses the injector defaults; a nil
// Compile runs the compiler as a subprocess.
func New(opts Options) *Builder {
	if opts.Transpiler == nil {
		opts.Transpiler = inject.New(inject.DefaultOptions())
	}
	if opts.Compile == nil {
		opts.Compile = execCompile
	}
	return &Builder{opts: opts}
}

func (b *Builder) path(p string) string {
	if filepath.IsAbs(p) || b.opts.Dir == "" {
		return p
	}
	return filepath.Join(b.opts.Dir, p)
}

// OutputPath returns where the compiled simulation is written.
func (b *Builder) OutputPath() string {
	return b.path(b.opts.Output)
}

// Build cleans the build directory, transpiles every matching source and
// compiles the results. It returns the transpiled file paths.
func (b *Builder) Build(ctx context.Context) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Transpiling...")

	if err := b.checkDirs(); err != nil {
		return nil, err
	}
	if err := b.Clean(ctx); err != nil {
		return nil, err
	}
	files, err := b.Transpile(ctx)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no sources with extensions %v in %s", b.opts.Extensions, b.path(b.opts.SourceDir))
	}

	logger.Info("Compiling...", "files", len(files))
	if err := b.Compile(ctx, files); err != nil {
		return nil, err
	}
	logger.Info("Compiled.", "output", b.OutputPath())
	return files, nil
}

// checkDirs refuses a build directory that is the source directory, since
// Clean would remove the sources.
func (b *Builder) checkDirs() error {
	src, err := filepath.Abs(b.path(b.opts.SourceDir))
	if err != nil {
		return fmt.Errorf("resolving source directory: %w", err)
	}
	dst, err := filepath.Abs(b.path(b.opts.BuildDir))
	if err != nil {
		return fmt.Errorf("resolving build directory: %w", err)
	}
	if src == dst {
		return fmt.Errorf("build directory %s is the source directory", dst)
	}
	return nil
}

// Clean creates the build directory if needed and removes the files in it.
// Subdirectories are left alone.
func (b *Builder) Clean(ctx context.Context) error {
	dir := b.path(b.opts.BuildDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating build directory: %w", err)
	}
	removed, err := fsutil.RemoveFiles(dir)
	if err != nil {
		return fmt.Errorf("cleaning build directory: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Build directory cleaned.", "dir", dir, "removed", removed)
	return nil
}

// Sources lists the files in the source directory whose extension is
// configured, sorted by name.
func (b *Builder) Sources() ([]string, error) {
	names, err := fsutil.FindFilesByExtension(b.path(b.opts.SourceDir), b.opts.Extensions)
	if err != nil {
		return nil, fmt.Errorf("reading source directory: %w", err)
	}
	return names, nil
}

// Transpile rewrites every source into the build directory concurrently and
// returns the written paths in source order.
func (b *Builder) Transpile(ctx context.Context) ([]string, error) {
	names, err := b.Sources()
	if err != nil {
		return nil, err
	}

	srcDir := b.path(b.opts.SourceDir)
	buildDir := b.path(b.opts.BuildDir)
	out := make([]string, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger := ctxlog.FromContext(ctx).With("file", name)

			data, err := os.ReadFile(filepath.Join(srcDir, name))
			if err != nil {
				return fmt.Errorf("reading %s: %w", name, err)
			}
			result, err := b.opts.Transpiler.Transpile(string(data))
			if err != nil {
				return fmt.Errorf("transpiling %s: %w", name, err)
			}
			dst := filepath.Join(buildDir, name)
			if err := os.WriteFile(dst, []byte(result), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", dst, err)
			}
			logger.Debug("Transpiled.", "bytes", len(result))
			out[i] = dst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Compile invokes `<compiler> -o <output> <files...>`.
func (b *Builder) Compile(ctx context.Context, files []string) error {
	args := append([]string{"-o", b.OutputPath()}, files...)
	output, err := b.opts.Compile(ctx, b.opts.Compiler, args)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", b.opts.Compiler, err, bytes.TrimSpace(output))
	}
	if len(bytes.TrimSpace(output)) > 0 {
		return fmt.Errorf("%s reported: %s", b.opts.Compiler, bytes.TrimSpace(output))
	}
	return nil
}

func execCompile(ctx context.Context, name string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
