// Package report renders the "source -> destination" lines a build produces.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/conneroisu/tagc/internal/flow"
	"gopkg.in/yaml.v3"
)

// Supported formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists every format New accepts.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

// Reporter receives one call per produced (input, output) pair. Flush is
// called once at the end of every build pass.
type Reporter interface {
	Report(p flow.Pair) error
	Flush() error
}

// New returns a reporter writing format to w. Paths are shown relative to
// base when base is not empty.
func New(format string, w io.Writer, base string) (Reporter, error) {
	switch format {
	case "", FormatText:
		return &textReporter{w: w, base: base}, nil
	case FormatJSON, FormatYAML:
		return &structuredReporter{w: w, base: base, format: format}, nil
	default:
		return nil, fmt.Errorf("unsupported report format %q (supported: text, json, yaml)", format)
	}
}

type nopReporter struct{}

// Nop returns a Reporter that discards everything.
func Nop() Reporter { return nopReporter{} }

func (nopReporter) Report(flow.Pair) error { return nil }
func (nopReporter) Flush() error           { return nil }

func display(base, p string) string {
	if base == "" {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return p
	}
	return rel
}

type textReporter struct {
	mu   sync.Mutex
	w    io.Writer
	base string
}

func (r *textReporter) Report(p flow.Pair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintf(r.w, "%s -> %s\n", display(r.base, p.Input), display(r.base, p.Output))
	return err
}

func (r *textReporter) Flush() error { return nil }

type structuredReporter struct {
	mu      sync.Mutex
	w       io.Writer
	base    string
	format  string
	pending []flow.Pair
}

func (r *structuredReporter) Report(p flow.Pair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, flow.Pair{
		Input:  display(r.base, p.Input),
		Output: display(r.base, p.Output),
	})
	return nil
}

func (r *structuredReporter) Flush() error {
	r.mu.Lock()
	pairs := r.pending
	r.pending = nil
	r.mu.Unlock()

	if pairs == nil {
		pairs = []flow.Pair{}
	}
	doc := struct {
		Files []flow.Pair `json:"files" yaml:"files"`
	}{Files: pairs}

	if r.format == FormatJSON {
		enc := json.NewEncoder(r.w)
		return enc.Encode(doc)
	}

	enc := yaml.NewEncoder(r.w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
