package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/quillscan/quillscan/internal/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := GetRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootHelpListsSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "image")
	assert.Contains(t, out, "video")
	assert.Contains(t, out, "batch")
	assert.Contains(t, out, "document")
	assert.Contains(t, out, "serve")
}

func TestImageCommandRejectsUnsupportedFormat(t *testing.T) {
	_, err := execute(t, "image", "notes.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestVideoCommandRejectsUnsupportedFormat(t *testing.T) {
	_, err := execute(t, "video", "scan.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestDocumentCommandExtractsText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello from disk"), 0o600))

	out, err := execute(t, "document", path)
	require.NoError(t, err)

	var res ocr.DocumentResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "hello from disk", res.Text)
}
