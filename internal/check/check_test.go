package check

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tagc/internal/compiler"
	tagcerrors "github.com/conneroisu/tagc/internal/errors"
	"github.com/conneroisu/tagc/internal/flow"
)

// lineAnalyzer flags every line containing "bad".
func lineAnalyzer(_ context.Context, src string) ([]compiler.Line, error) {
	var out []compiler.Line
	for i, line := range strings.Split(src, "\n") {
		l := compiler.Line{Line: i + 1, Source: line}
		if strings.Contains(line, "bad") {
			l.Error = "unexpected token"
		}
		out = append(out, l)
	}
	return out, nil
}

func TestCheckerReportsErrors(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "src/a.tag", []byte("<a>\n  bad\n</a>"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "src/b.tag", []byte("<b/>"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "src/c.tag", []byte("\uFEFFbad one\nbad two"), 0o644))

	var out bytes.Buffer
	n, err := New(fsys, compiler.AnalyzerFunc(lineAnalyzer), &out, nil).Run(context.Background(), flow.Spec{Source: "src"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want := "src/a.tag\n" +
		"  2|   bad\n" +
		"     ^ unexpected token\n" +
		"\n" +
		"src/c.tag\n" +
		"  1| bad one\n" +
		"     ^ unexpected token\n" +
		"  2| bad two\n" +
		"     ^ unexpected token\n" +
		"\n" +
		"Total errors: 3\n"
	assert.Equal(t, want, out.String())
}

func TestCheckerClean(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "a.tag", []byte("<a/>"), 0o644))

	var out bytes.Buffer
	n, err := New(fsys, compiler.AnalyzerFunc(lineAnalyzer), &out, nil).Run(context.Background(), flow.Spec{Source: "a.tag"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "Total errors: 0\n", out.String())
}

func TestCheckerDoesNotWrite(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "a.tag", []byte("bad"), 0o644))

	_, err := New(afero.NewReadOnlyFs(fsys), compiler.AnalyzerFunc(lineAnalyzer), &bytes.Buffer{}, nil).
		Run(context.Background(), flow.Spec{Source: "a.tag", Dest: "out"})
	require.NoError(t, err)

	exists, _ := afero.DirExists(fsys, "out")
	assert.False(t, exists)
}

func TestCheckerAnalyzerFailure(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "a.tag", []byte("x"), 0o644))
	boom := errors.New("analyzer crashed")

	_, err := New(fsys, compiler.AnalyzerFunc(func(context.Context, string) ([]compiler.Line, error) {
		return nil, boom
	}), &bytes.Buffer{}, nil).Run(context.Background(), flow.Spec{Source: "a.tag"})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "a.tag", tagcerrors.FilePath(err))
}

func TestCheckerMissingFile(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), compiler.AnalyzerFunc(lineAnalyzer), &bytes.Buffer{}, nil).
		Run(context.Background(), flow.Spec{Source: "ghost.tag"})
	assert.True(t, tagcerrors.IsIOError(err))
	assert.ErrorIs(t, err, tagcerrors.NewIOError(tagcerrors.ErrCodeSourceNotFound, "", nil))
}
