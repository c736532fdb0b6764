package flow

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tagcerrors "github.com/conneroisu/tagc/internal/errors"
	"github.com/spf13/afero"
)

// Pair is one input file and the file its compiled text goes to.
type Pair struct {
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

// Mapping is the resolved file set of one build. Pairs keep discovery
// order. With DestFile every pair shares the same Output.
type Mapping struct {
	Spec  Spec
	Flow  Flow
	Base  string
	Pairs []Pair
}

// Empty reports whether the mapping has no inputs.
func (m *Mapping) Empty() bool {
	return len(m.Pairs) == 0
}

// Inputs returns the input paths in order.
func (m *Mapping) Inputs() []string {
	out := make([]string, len(m.Pairs))
	for i, p := range m.Pairs {
		out[i] = p.Input
	}
	return out
}

// Outputs returns the distinct output paths in order of first use.
func (m *Mapping) Outputs() []string {
	seen := make(map[string]bool, len(m.Pairs))
	var out []string
	for _, p := range m.Pairs {
		if !seen[p.Output] {
			seen[p.Output] = true
			out = append(out, p.Output)
		}
	}
	return out
}

// OutputDirs returns the sorted union of the outputs' parent directories.
func (m *Mapping) OutputDirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range m.Pairs {
		d := filepath.Dir(p.Output)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// Validate reports a spec that cannot be built: a missing source, or source
// and output extensions that would overwrite the inputs.
func (s Spec) Validate() error {
	s = s.Normalized()
	if s.Source == "" {
		return tagcerrors.NewValidationError(tagcerrors.ErrCodeValidationFailed, "source path is required")
	}
	if s.SourceExt == s.OutputExt {
		return tagcerrors.NewValidationError(tagcerrors.ErrCodeValidationFailed,
			"source and output extensions must differ, both are "+s.SourceExt)
	}
	return nil
}

// Resolve classifies spec and computes its input/output pairs.
//
// A single-file source is taken as given even if it does not exist; reading
// it is the build's concern. A tree source is walked in lexical order and a
// missing tree yields an empty mapping. Hidden directories below the root
// are skipped.
func Resolve(fsys afero.Fs, spec Spec) (*Mapping, error) {
	spec = spec.Normalized()
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	m := &Mapping{Spec: spec, Flow: Classify(fsys, spec)}

	var inputs []string
	switch m.Flow.Source {
	case SourceFile:
		m.Base = filepath.Dir(spec.Source)
		inputs = []string{spec.Source}
	case SourceTree:
		m.Base = spec.Source
		found, err := findSources(fsys, spec.Source, spec.SourceExt)
		if err != nil {
			return nil, err
		}
		inputs = found
	}

	m.Pairs = make([]Pair, 0, len(inputs))
	switch m.Flow.Dest {
	case DestFile:
		out := spec.Dest
		if out == "" {
			out = SwapExt(spec.Source, spec.SourceExt, spec.OutputExt)
		}
		for _, in := range inputs {
			m.Pairs = append(m.Pairs, Pair{Input: in, Output: out})
		}
	case DestMirrored:
		destDir := spec.Dest
		if destDir == "" {
			destDir = m.Base
		}
		for _, in := range inputs {
			rel, err := filepath.Rel(m.Base, in)
			if err != nil {
				return nil, tagcerrors.NewResolveError(tagcerrors.ErrCodeWalkFailed,
					"cannot place input below "+m.Base, err).WithPath(in)
			}
			m.Pairs = append(m.Pairs, Pair{
				Input:  in,
				Output: filepath.Join(destDir, SwapExt(rel, spec.SourceExt, spec.OutputExt)),
			})
		}
	}

	return m, nil
}

func findSources(fsys afero.Fs, root, ext string) ([]string, error) {
	var found []string
	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return tagcerrors.NewIOError(tagcerrors.ErrCodeWalkFailed, "cannot scan source tree", err).WithPath(path)
		}
		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(info.Name(), ext) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// EnsureDirs creates every output parent directory of m. It is idempotent.
func EnsureDirs(fsys afero.Fs, m *Mapping) error {
	for _, dir := range m.OutputDirs() {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return tagcerrors.NewIOError(tagcerrors.ErrCodeMkdirFailed, "cannot create output directory", err).WithPath(dir)
		}
	}
	return nil
}
