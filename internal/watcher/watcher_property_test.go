//go:build property

package watcher

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestWatchPatternProperties checks that tree patterns accept exactly the
// source files below their root.
func TestWatchPatternProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("tree pattern matches sources at any depth", prop.ForAll(
		func(root string, dirs []string, name string) bool {
			pattern := filepath.Join(root, "**", "*.tag")
			f, err := GlobFilter(pattern)
			if err != nil {
				return false
			}
			p := filepath.Join(append(append([]string{root}, dirs...), name+".tag")...)
			return f(p) && !f(strings.TrimSuffix(p, ".tag")+".js")
		},
		gen.Identifier(),
		gen.SliceOfN(3, gen.Identifier()),
		gen.Identifier(),
	))

	properties.Property("tree pattern rejects paths outside its root", prop.ForAll(
		func(root, other, name string) bool {
			if root == other {
				return true
			}
			f, err := GlobFilter(filepath.Join(root, "**", "*.tag"))
			if err != nil {
				return false
			}
			return !f(filepath.Join(other, name+".tag"))
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("root of a tree pattern is its source directory", prop.ForAll(
		func(dirs []string) bool {
			src := filepath.Join(dirs...)
			return Root(filepath.Join(src, "**", "*.tag")) == src
		},
		gen.SliceOfN(3, gen.Identifier()),
	))

	properties.TestingRun(t)
}
