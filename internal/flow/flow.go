// Package flow decides which files a build reads and where each compiled
// result is written.
//
// A build is described by a Spec: a source (one file or a directory tree)
// and an optional destination (one file, or a directory mirroring the
// source tree). Classify reduces the two path shapes to a Flow, and Resolve
// turns a Spec into a Mapping of input/output pairs. Nothing in this package
// reads file contents or creates files, except EnsureDirs.
package flow

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Default extensions used when a Spec leaves them empty.
const (
	DefaultSourceExt = ".tag"
	DefaultOutputExt = ".js"
)

// SourceKind is the shape of a build's source.
type SourceKind int

const (
	// SourceFile means the source names one file.
	SourceFile SourceKind = iota
	// SourceTree means the source is a directory scanned recursively.
	SourceTree
)

func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceTree:
		return "dir"
	default:
		return "unknown"
	}
}

// DestKind is the shape of a build's destination.
type DestKind int

const (
	// DestFile means every input is written to one output file.
	DestFile DestKind = iota
	// DestMirrored means each input gets its own output, laid out like the
	// source tree.
	DestMirrored
)

func (k DestKind) String() string {
	switch k {
	case DestFile:
		return "file"
	case DestMirrored:
		return "dir"
	default:
		return "unknown"
	}
}

// Flow is the build topology derived from a Spec.
type Flow struct {
	Source SourceKind
	Dest   DestKind
}

// String renders the flow as "file->file", "dir->dir" and so on.
func (f Flow) String() string {
	return f.Source.String() + "->" + f.Dest.String()
}

// Spec describes one build: what to read and where to write.
type Spec struct {
	// Source is a file or a directory root.
	Source string
	// Dest is an output file, an output directory, or empty.
	Dest string
	// SourceExt selects source files in a tree, e.g. ".tag".
	SourceExt string
	// OutputExt replaces SourceExt on outputs, e.g. ".js".
	OutputExt string
}

// Normalized returns a copy with cleaned paths and dot-prefixed extensions,
// filling in the defaults.
func (s Spec) Normalized() Spec {
	out := Spec{
		Source:    s.Source,
		Dest:      s.Dest,
		SourceExt: NormalizeExt(s.SourceExt, DefaultSourceExt),
		OutputExt: NormalizeExt(s.OutputExt, DefaultOutputExt),
	}
	if out.Source != "" {
		out.Source = filepath.Clean(out.Source)
	}
	if out.Dest != "" {
		out.Dest = filepath.Clean(out.Dest)
	}
	return out
}

// NormalizeExt turns "tag" or ".tag" into ".tag", or returns def when ext is
// empty.
func NormalizeExt(ext, def string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return def
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Classify computes the flow for spec. The source is a single file when it
// carries the source extension or is a regular file on fsys. The destination
// is a single file when it carries the output extension, or when it is
// omitted for a single-file source (the output then sits next to the source).
func Classify(fsys afero.Fs, spec Spec) Flow {
	spec = spec.Normalized()

	f := Flow{Source: SourceTree, Dest: DestMirrored}
	if isSourceFile(fsys, spec) {
		f.Source = SourceFile
	}

	switch {
	case spec.Dest == "":
		if f.Source == SourceFile {
			f.Dest = DestFile
		}
	case strings.HasSuffix(spec.Dest, spec.OutputExt):
		f.Dest = DestFile
	}
	return f
}

func isSourceFile(fsys afero.Fs, spec Spec) bool {
	if strings.HasSuffix(spec.Source, spec.SourceExt) {
		return true
	}
	info, err := fsys.Stat(spec.Source)
	return err == nil && info.Mode().IsRegular()
}

// SwapExt replaces the source extension of p with outExt. When p does not
// end in srcExt its own extension, if any, is replaced instead.
func SwapExt(p, srcExt, outExt string) string {
	if strings.HasSuffix(p, srcExt) {
		return strings.TrimSuffix(p, srcExt) + outExt
	}
	return strings.TrimSuffix(p, filepath.Ext(p)) + outExt
}

// WatchGlob returns the pattern a watcher should observe for spec: the
// source file itself, or every source file below the source tree.
func WatchGlob(spec Spec, f Flow) string {
	spec = spec.Normalized()
	if f.Source == SourceFile {
		return spec.Source
	}
	return filepath.Join(spec.Source, "**", "*"+spec.SourceExt)
}
