// Package compiler defines the contracts tagc expects from the external tag
// compiler and syntax analyzer, together with process-backed and cached
// implementations of them.
package compiler

import (
	"context"
)

// Options is forwarded verbatim to the compiler. The build core only reads
// Modular and Silent; everything else is opaque to it. Compilers must not
// let Modular or Silent change their output.
type Options struct {
	Compact    bool   `json:"compact,omitempty" yaml:"compact"`
	Type       string `json:"type,omitempty" yaml:"type"`
	Template   string `json:"template,omitempty" yaml:"template"`
	Brackets   string `json:"brackets,omitempty" yaml:"brackets"`
	Expr       bool   `json:"expr,omitempty" yaml:"expr"`
	Whitespace bool   `json:"whitespace,omitempty" yaml:"whitespace"`
	Modular    bool   `json:"modular,omitempty" yaml:"modular"`
	Silent     bool   `json:"silent,omitempty" yaml:"silent"`
}

// Compiler turns tag source text into compiled text.
type Compiler interface {
	Compile(ctx context.Context, source string, opts Options) (string, error)
}

// Func adapts a plain function to the Compiler interface.
type Func func(ctx context.Context, source string, opts Options) (string, error)

// Compile calls f.
func (f Func) Compile(ctx context.Context, source string, opts Options) (string, error) {
	return f(ctx, source, opts)
}

// Line is one analyzed source line. Error is empty when the line is valid.
type Line struct {
	Line   int    `json:"line"`
	Source string `json:"source"`
	Error  string `json:"error,omitempty"`
}

// Analyzer reports per-line syntax problems for check mode.
type Analyzer interface {
	Analyze(ctx context.Context, source string) ([]Line, error)
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, source string) ([]Line, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, source string) ([]Line, error) {
	return f(ctx, source)
}
