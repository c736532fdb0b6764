package flow

import (
	"path/filepath"
	"testing"

	tagcerrors "github.com/conneroisu/tagc/internal/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFS(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fsys, f, []byte("<"+filepath.Base(f)+"/>"), 0o644))
	}
	return fsys
}

func TestNormalizeExt(t *testing.T) {
	assert.Equal(t, ".tag", NormalizeExt("tag", ".x"))
	assert.Equal(t, ".tag", NormalizeExt(".tag", ".x"))
	assert.Equal(t, ".x", NormalizeExt("  ", ".x"))
}

func TestSwapExt(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"foo.tag", "foo.js"},
		{"a/b/c.tag", "a/b/c.js"},
		{"page.html", "page.js"},
		{"noext", "noext.js"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, SwapExt(tc.in, ".tag", ".js"))
		})
	}
}

func TestClassify(t *testing.T) {
	fsys := memFS(t, "src/a.tag", "src/page.html")
	require.NoError(t, fsys.MkdirAll("out", 0o755))

	testCases := []struct {
		name string
		spec Spec
		want Flow
	}{
		{"file, no dest", Spec{Source: "src/a.tag"}, Flow{SourceFile, DestFile}},
		{"file to file", Spec{Source: "src/a.tag", Dest: "out/x.js"}, Flow{SourceFile, DestFile}},
		{"file to dir", Spec{Source: "src/a.tag", Dest: "out"}, Flow{SourceFile, DestMirrored}},
		{"missing file by extension", Spec{Source: "nope/z.tag"}, Flow{SourceFile, DestFile}},
		{"existing file without extension", Spec{Source: "src/page.html", Dest: "out"}, Flow{SourceFile, DestMirrored}},
		{"dir, no dest", Spec{Source: "src"}, Flow{SourceTree, DestMirrored}},
		{"dir to dir", Spec{Source: "src", Dest: "out"}, Flow{SourceTree, DestMirrored}},
		{"dir to file", Spec{Source: "src", Dest: "bundle.js"}, Flow{SourceTree, DestFile}},
		{"custom ext", Spec{Source: "src", Dest: "bundle.mjs", OutputExt: "mjs"}, Flow{SourceTree, DestFile}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(fsys, tc.spec))
		})
	}
}

func TestFlowString(t *testing.T) {
	assert.Equal(t, "file->file", Flow{SourceFile, DestFile}.String())
	assert.Equal(t, "dir->dir", Flow{SourceTree, DestMirrored}.String())
	assert.Equal(t, "dir->file", Flow{SourceTree, DestFile}.String())
}

func TestResolveSingleFileNoDest(t *testing.T) {
	fsys := memFS(t, "foo.tag")

	m, err := Resolve(fsys, Spec{Source: "foo.tag"})
	require.NoError(t, err)

	want := []Pair{{Input: "foo.tag", Output: "foo.js"}}
	if diff := cmp.Diff(want, m.Pairs); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, ".", m.Base)
}

func TestResolveSingleFileToDir(t *testing.T) {
	fsys := memFS(t, "tags/todo.tag")

	m, err := Resolve(fsys, Spec{Source: "tags/todo.tag", Dest: "dist/js"})
	require.NoError(t, err)

	want := []Pair{{Input: "tags/todo.tag", Output: filepath.Join("dist", "js", "todo.js")}}
	if diff := cmp.Diff(want, m.Pairs); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveTreeInPlace(t *testing.T) {
	fsys := memFS(t, "foo/bar/a.tag", "foo/bar/sub/b.tag", "foo/bar/readme.md")

	m, err := Resolve(fsys, Spec{Source: "foo/bar"})
	require.NoError(t, err)

	want := []Pair{
		{Input: "foo/bar/a.tag", Output: "foo/bar/a.js"},
		{Input: "foo/bar/sub/b.tag", Output: "foo/bar/sub/b.js"},
	}
	if diff := cmp.Diff(want, m.Pairs); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Flow{SourceTree, DestMirrored}, m.Flow)
}

func TestResolveTreeToDir(t *testing.T) {
	fsys := memFS(t, "src/a.tag", "src/x/y/c.tag", "src/.cache/hidden.tag")

	m, err := Resolve(fsys, Spec{Source: "src", Dest: "out"})
	require.NoError(t, err)

	want := []Pair{
		{Input: "src/a.tag", Output: "out/a.js"},
		{Input: "src/x/y/c.tag", Output: "out/x/y/c.js"},
	}
	if diff := cmp.Diff(want, m.Pairs); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"out", "out/x/y"}, m.OutputDirs())
}

func TestResolveTreeConcat(t *testing.T) {
	fsys := memFS(t, "foo/bar/a.tag", "foo/bar/b.tag")

	m, err := Resolve(fsys, Spec{Source: "foo/bar", Dest: "baz.js"})
	require.NoError(t, err)

	assert.Equal(t, []string{"foo/bar/a.tag", "foo/bar/b.tag"}, m.Inputs())
	assert.Equal(t, []string{"baz.js"}, m.Outputs())
	assert.Equal(t, []string{"."}, m.OutputDirs())
	assert.Equal(t, Flow{SourceTree, DestFile}, m.Flow)
}

func TestResolveCustomExtensions(t *testing.T) {
	fsys := memFS(t, "views/a.riot", "views/b.tag")

	m, err := Resolve(fsys, Spec{Source: "views", Dest: "out", SourceExt: "riot", OutputExt: "mjs"})
	require.NoError(t, err)

	want := []Pair{{Input: "views/a.riot", Output: "out/a.mjs"}}
	if diff := cmp.Diff(want, m.Pairs); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveMissingTree(t *testing.T) {
	m, err := Resolve(afero.NewMemMapFs(), Spec{Source: "does/not/exist"})
	require.NoError(t, err)
	assert.True(t, m.Empty())
	assert.Empty(t, m.OutputDirs())
}

func TestResolveMissingSingleFile(t *testing.T) {
	m, err := Resolve(afero.NewMemMapFs(), Spec{Source: "ghost.tag"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost.tag"}, m.Inputs())
}

func TestResolveValidation(t *testing.T) {
	_, err := Resolve(afero.NewMemMapFs(), Spec{})
	require.Error(t, err)

	_, err = Resolve(afero.NewMemMapFs(), Spec{Source: "a", SourceExt: "js", OutputExt: ".js"})
	require.Error(t, err)

	var te *tagcerrors.TagcError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tagcerrors.ErrorTypeValidation, te.Type)
}

func TestResolveDoesNotTouchFS(t *testing.T) {
	fsys := memFS(t, "src/a.tag")
	_, err := Resolve(fsys, Spec{Source: "src", Dest: "out/deep"})
	require.NoError(t, err)

	exists, err := afero.DirExists(fsys, "out")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnsureDirs(t *testing.T) {
	fsys := memFS(t, "src/a.tag", "src/sub/b.tag")
	m, err := Resolve(fsys, Spec{Source: "src", Dest: "out"})
	require.NoError(t, err)

	require.NoError(t, EnsureDirs(fsys, m))
	require.NoError(t, EnsureDirs(fsys, m))

	for _, dir := range []string{"out", "out/sub"} {
		exists, err := afero.DirExists(fsys, dir)
		require.NoError(t, err)
		assert.True(t, exists, dir)
	}
}

func TestEnsureDirsFailure(t *testing.T) {
	fsys := memFS(t, "src/a.tag")
	m, err := Resolve(fsys, Spec{Source: "src", Dest: "out"})
	require.NoError(t, err)

	err = EnsureDirs(afero.NewReadOnlyFs(fsys), m)
	require.Error(t, err)
	assert.True(t, tagcerrors.IsIOError(err))
	assert.Equal(t, "out", tagcerrors.FilePath(err))
}

func TestWatchGlob(t *testing.T) {
	assert.Equal(t, "foo.tag", WatchGlob(Spec{Source: "foo.tag"}, Flow{SourceFile, DestFile}))
	assert.Equal(t, filepath.Join("src", "**", "*.tag"), WatchGlob(Spec{Source: "src/"}, Flow{SourceTree, DestMirrored}))
	assert.Equal(t, filepath.Join("src", "**", "*.riot"), WatchGlob(Spec{Source: "src", SourceExt: "riot"}, Flow{SourceTree, DestFile}))
}
