package compiler

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	tagcerrors "github.com/conneroisu/tagc/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuncAdapter(t *testing.T) {
	var c Compiler = Func(func(_ context.Context, src string, opts Options) (string, error) {
		if opts.Compact {
			return strings.TrimSpace(src), nil
		}
		return src, nil
	})

	out, err := c.Compile(context.Background(), "  <a/>  ", Options{Compact: true})
	require.NoError(t, err)
	assert.Equal(t, "<a/>", out)
}

func TestExecCompilerArgs(t *testing.T) {
	ec, err := NewExecCompiler("tagc-compiler", []string{"compile", "-"}, 0)
	require.NoError(t, err)

	args := ec.Args(Options{
		Compact:    true,
		Type:       "es6",
		Template:   "pug",
		Brackets:   "[ ]",
		Expr:       true,
		Whitespace: true,
		Modular:    true,
	})

	assert.Equal(t, []string{
		"compile", "-",
		"--compact", "--type=es6", "--template=pug", "--brackets=[ ]", "--expr", "--whitespace",
	}, args)

	assert.Equal(t, []string{"compile", "-"}, ec.Args(Options{}))
}

func TestNewExecCompilerValidation(t *testing.T) {
	testCases := []string{"", "   ", "rm -rf /; echo", "a|b", "$(whoami)"}
	for _, command := range testCases {
		t.Run(command, func(t *testing.T) {
			_, err := NewExecCompiler(command, nil, 0)
			require.Error(t, err)
			assert.True(t, tagcerrors.IsConfigError(err))
		})
	}
}

func TestExecCompilerCompile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses cat and sh")
	}
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	ec, err := NewExecCompiler("cat", nil, 5*time.Second)
	require.NoError(t, err)

	out, err := ec.Compile(context.Background(), "<todo></todo>", Options{})
	require.NoError(t, err)
	assert.Equal(t, "<todo></todo>", out)
}

func TestExecCompilerFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	ec, err := NewExecCompiler("sh", []string{"-c", "echo 'unexpected token' >&2; exit 3"}, 5*time.Second)
	require.NoError(t, err)

	_, err = ec.Compile(context.Background(), "<broken", Options{})
	require.Error(t, err)

	var perr *ProcessError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "unexpected token", perr.Stderr)

	var exitErr *exec.ExitError
	assert.True(t, errors.As(err, &exitErr))
}

func TestExecAnalyzer(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	script := `cat >/dev/null; echo '[{"line":1,"source":"<a>"},{"line":2,"source":"<b","error":"unclosed tag"}]'`
	ea, err := NewExecAnalyzer("sh", []string{"-c", script}, 5*time.Second)
	require.NoError(t, err)

	lines, err := ea.Analyze(context.Background(), "<a>\n<b")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, Line{Line: 2, Source: "<b", Error: "unclosed tag"}, lines[1])
	assert.Empty(t, lines[0].Error)
}

func TestExecAnalyzerBadOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	ea, err := NewExecAnalyzer("sh", []string{"-c", "cat >/dev/null; echo not-json"}, 5*time.Second)
	require.NoError(t, err)

	_, err = ea.Analyze(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), tagcerrors.ErrCodeAnalyzeFailed)
}

func TestCached(t *testing.T) {
	calls := 0
	next := Func(func(_ context.Context, src string, opts Options) (string, error) {
		calls++
		if src == "bad" {
			return "", errors.New("syntax error")
		}
		return strings.ToUpper(src), nil
	})

	c, err := NewCached(next, 8)
	require.NoError(t, err)
	ctx := context.Background()

	out, err := c.Compile(ctx, "a", Options{})
	require.NoError(t, err)
	assert.Equal(t, "A", out)

	out, err = c.Compile(ctx, "a", Options{})
	require.NoError(t, err)
	assert.Equal(t, "A", out)
	assert.Equal(t, 1, calls)

	// build-only options share the entry
	out, err = c.Compile(ctx, "a", Options{Modular: true, Silent: true})
	require.NoError(t, err)
	assert.Equal(t, "A", out)
	assert.Equal(t, 1, calls)

	// compiler options are a different key
	_, err = c.Compile(ctx, "a", Options{Compact: true})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// failures are not cached
	_, err = c.Compile(ctx, "bad", Options{})
	require.Error(t, err)
	_, err = c.Compile(ctx, "bad", Options{})
	require.Error(t, err)
	assert.Equal(t, 4, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(4), misses)
	assert.Equal(t, 2, c.Len())
}

func TestNewCachedInvalidSize(t *testing.T) {
	_, err := NewCached(Func(nil), 0)
	assert.Error(t, err)
}
