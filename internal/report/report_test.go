package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/conneroisu/tagc/internal/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type filesDoc struct {
	Files []flow.Pair `json:"files" yaml:"files"`
}

func TestTextReporter(t *testing.T) {
	var buf bytes.Buffer
	r, err := New(FormatText, &buf, "")
	require.NoError(t, err)

	require.NoError(t, r.Report(flow.Pair{Input: "foo.tag", Output: "foo.js"}))
	require.NoError(t, r.Report(flow.Pair{Input: "bar.tag", Output: "foo.js"}))
	require.NoError(t, r.Flush())

	assert.Equal(t, "foo.tag -> foo.js\nbar.tag -> foo.js\n", buf.String())
}

func TestTextReporterRelativeToBase(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	var buf bytes.Buffer
	r, err := New("", &buf, cwd)
	require.NoError(t, err)

	abs := filepath.Join(cwd, "tags", "a.tag")
	require.NoError(t, r.Report(flow.Pair{Input: abs, Output: filepath.Join("dist", "a.js")}))

	assert.Equal(t, filepath.Join("tags", "a.tag")+" -> "+filepath.Join("dist", "a.js")+"\n", buf.String())
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	r, err := New(FormatJSON, &buf, "")
	require.NoError(t, err)

	require.NoError(t, r.Report(flow.Pair{Input: "a.tag", Output: "a.js"}))
	assert.Empty(t, buf.String(), "structured output is written on flush")
	require.NoError(t, r.Flush())

	var doc filesDoc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, []flow.Pair{{Input: "a.tag", Output: "a.js"}}, doc.Files)

	// a second pass starts empty
	buf.Reset()
	require.NoError(t, r.Flush())
	assert.JSONEq(t, `{"files":[]}`, buf.String())
}

func TestYAMLReporter(t *testing.T) {
	var buf bytes.Buffer
	r, err := New(FormatYAML, &buf, "")
	require.NoError(t, err)

	require.NoError(t, r.Report(flow.Pair{Input: "src/a.tag", Output: "out/a.js"}))
	require.NoError(t, r.Report(flow.Pair{Input: "src/b.tag", Output: "out/b.js"}))
	require.NoError(t, r.Flush())

	var doc filesDoc
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Files, 2)
	assert.Equal(t, "out/b.js", doc.Files[1].Output)
}

func TestUnknownFormat(t *testing.T) {
	_, err := New("xml", &bytes.Buffer{}, "")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	r := Nop()
	assert.NoError(t, r.Report(flow.Pair{Input: "a", Output: "b"}))
	assert.NoError(t, r.Flush())
}
