// Package check runs the syntax analyzer over every source a build would
// read and prints a per-line error report.
package check

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/tagc/internal/build"
	"github.com/conneroisu/tagc/internal/compiler"
	tagcerrors "github.com/conneroisu/tagc/internal/errors"
	"github.com/conneroisu/tagc/internal/flow"
	"github.com/conneroisu/tagc/internal/logging"
)

// Checker analyzes sources without writing any output.
type Checker struct {
	fs       afero.Fs
	analyzer compiler.Analyzer
	out      io.Writer
	logger   logging.Logger
}

// New creates a checker printing its report to out.
func New(fsys afero.Fs, analyzer compiler.Analyzer, out io.Writer, logger logging.Logger) *Checker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Checker{
		fs:       fsys,
		analyzer: analyzer,
		out:      out,
		logger:   logger.WithComponent("check"),
	}
}

// Run analyzes every input of spec and returns the number of erroneous
// lines. A non-nil error means the check itself could not complete.
func (c *Checker) Run(ctx context.Context, spec flow.Spec) (int, error) {
	m, err := flow.Resolve(c.fs, spec)
	if err != nil {
		return 0, err
	}

	collector := tagcerrors.NewErrorCollector()
	for _, in := range m.Inputs() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		data, err := afero.ReadFile(c.fs, in)
		if err != nil {
			return 0, tagcerrors.NewReadError(in, err)
		}

		lines, err := c.analyzer.Analyze(ctx, build.StripBOM(string(data)))
		if err != nil {
			return 0, &tagcerrors.TagcError{
				Type:     tagcerrors.ErrorTypeValidation,
				Code:     tagcerrors.ErrCodeAnalyzeFailed,
				Message:  "analyzer failed",
				Cause:    err,
				FilePath: in,
			}
		}
		for _, l := range lines {
			if l.Error == "" {
				continue
			}
			collector.Add(tagcerrors.Diagnostic{File: in, Line: l.Line, Source: l.Source, Message: l.Error})
		}
		c.logger.Debug(ctx, "analyzed", "input", in, "lines", len(lines))
	}

	if err := Print(c.out, collector); err != nil {
		return 0, err
	}
	return collector.Count(), nil
}

// Print writes the diagnostics grouped by file, each followed by a caret
// line under the offending source, then the total count.
func Print(w io.Writer, collector *tagcerrors.ErrorCollector) error {
	var b strings.Builder
	for _, file := range collector.Files() {
		b.WriteString(file)
		b.WriteByte('\n')
		for _, d := range collector.GetErrorsByFile(file) {
			prefix := "  " + strconv.Itoa(d.Line) + "| "
			b.WriteString(prefix)
			b.WriteString(d.Source)
			b.WriteByte('\n')
			b.WriteString(strings.Repeat(" ", len(prefix)))
			b.WriteString("^ ")
			b.WriteString(d.Message)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Total errors: %d\n", collector.Count())

	_, err := io.WriteString(w, b.String())
	return err
}
