// Package build runs one compile pass: resolve the file mapping, read and
// compile every input, optionally wrap the output in a module shim, write
// the results and report what was produced.
package build

import (
	"context"
	"strings"
	"time"

	"github.com/conneroisu/tagc/internal/compiler"
	tagcerrors "github.com/conneroisu/tagc/internal/errors"
	"github.com/conneroisu/tagc/internal/flow"
	"github.com/conneroisu/tagc/internal/logging"
	"github.com/conneroisu/tagc/internal/report"
	"github.com/spf13/afero"
)

const bom = "\uFEFF"

// StripBOM removes one leading UTF-8 byte order mark from source text.
func StripBOM(s string) string {
	return strings.TrimPrefix(s, bom)
}

// Report describes a finished pass.
type Report struct {
	Flow     flow.Flow
	Pairs    []flow.Pair
	Duration time.Duration
}

// Outputs returns the distinct files written by the pass.
func (r *Report) Outputs() []string {
	m := flow.Mapping{Pairs: r.Pairs}
	return m.Outputs()
}

// Runner executes build passes. A Runner holds no per-pass state and may be
// reused for any number of sequential passes.
type Runner struct {
	fs       afero.Fs
	compiler compiler.Compiler
	reporter report.Reporter
	logger   logging.Logger
	global   string
}

// Option configures a Runner.
type Option func(*Runner)

// WithReporter sets where produced pairs are reported.
func WithReporter(r report.Reporter) Option {
	return func(rn *Runner) { rn.reporter = r }
}

// WithLogger sets the runner's logger.
func WithLogger(l logging.Logger) Option {
	return func(rn *Runner) { rn.logger = l }
}

// WithModuleGlobal sets the library handle used by the module shim.
func WithModuleGlobal(name string) Option {
	return func(rn *Runner) { rn.global = name }
}

// NewRunner creates a runner reading and writing through fsys.
func NewRunner(fsys afero.Fs, c compiler.Compiler, opts ...Option) *Runner {
	r := &Runner{
		fs:       fsys,
		compiler: c,
		reporter: report.Nop(),
		logger:   logging.NewNopLogger(),
		global:   DefaultModuleGlobal,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("build")
	return r
}

// Flow classifies spec against the runner's file system.
func (r *Runner) Flow(spec flow.Spec) flow.Flow {
	return flow.Classify(r.fs, spec)
}

// Run executes one full pass for spec.
//
// Inputs are processed sequentially in mapping order. The first read,
// compile or write failure aborts the pass; outputs already written stay on
// disk. Compiler errors are wrapped only to attach the input path.
func (r *Runner) Run(ctx context.Context, spec flow.Spec, opts compiler.Options) (*Report, error) {
	op := logging.StartOperation(r.logger, "build")

	m, err := flow.Resolve(r.fs, spec)
	if err != nil {
		return nil, err
	}

	rep := &Report{Flow: m.Flow}
	if m.Empty() {
		r.logger.Warn(ctx, nil, "no source files found", "source", m.Spec.Source, "ext", m.Spec.SourceExt)
		rep.Duration = op.End(ctx, "files", 0)
		return rep, nil
	}

	if err := flow.EnsureDirs(r.fs, m); err != nil {
		return nil, err
	}

	reporter := r.reporter
	if opts.Silent {
		reporter = report.Nop()
	}

	if m.Flow.Dest == flow.DestFile {
		err = r.concatenate(ctx, m, opts, reporter, rep)
	} else {
		err = r.mirror(ctx, m, opts, reporter, rep)
	}

	if ferr := reporter.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		op.EndWithError(ctx, err)
		return rep, err
	}

	rep.Duration = op.End(ctx, "files", len(rep.Pairs), "flow", m.Flow.String())
	return rep, nil
}

func (r *Runner) concatenate(ctx context.Context, m *flow.Mapping, opts compiler.Options, reporter report.Reporter, rep *Report) error {
	parts := make([]string, 0, len(m.Pairs))
	for _, p := range m.Pairs {
		out, err := r.compileFile(ctx, p.Input, opts)
		if err != nil {
			return err
		}
		parts = append(parts, out)
	}

	dest := m.Pairs[0].Output
	text := Encapsulate(strings.Join(parts, "\n"), opts.Modular, r.global)
	if err := r.write(dest, text); err != nil {
		return err
	}

	for _, p := range m.Pairs {
		rep.Pairs = append(rep.Pairs, p)
		if err := reporter.Report(p); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) mirror(ctx context.Context, m *flow.Mapping, opts compiler.Options, reporter report.Reporter, rep *Report) error {
	for _, p := range m.Pairs {
		out, err := r.compileFile(ctx, p.Input, opts)
		if err != nil {
			return err
		}
		if err := r.write(p.Output, Encapsulate(out, opts.Modular, r.global)); err != nil {
			return err
		}
		rep.Pairs = append(rep.Pairs, p)
		if err := reporter.Report(p); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) compileFile(ctx context.Context, path string, opts compiler.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return "", tagcerrors.NewReadError(path, err)
	}

	source := StripBOM(string(data))
	out, err := r.compiler.Compile(ctx, source, opts)
	if err != nil {
		return "", tagcerrors.NewCompileError(path, err)
	}

	r.logger.Debug(ctx, "compiled", "input", path, "bytes", len(out))
	return out, nil
}

func (r *Runner) write(path, text string) error {
	if err := afero.WriteFile(r.fs, path, []byte(text), 0o644); err != nil {
		return tagcerrors.NewIOError(tagcerrors.ErrCodeWriteFailed, "cannot write output", err).WithPath(path)
	}
	return nil
}
