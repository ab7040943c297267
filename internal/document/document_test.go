package document

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryExtractText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text content\nsecond line"), 0o600))

	res := NewRegistry().Extract(path)
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "plain text content\nsecond line", res.Text)
	assert.Equal(t, "txt", res.FileType)
	assert.Equal(t, path, res.FilePath)
}

func TestRegistryUnsupportedFormat(t *testing.T) {
	res := NewRegistry().Extract("slides.pptx")
	require.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "unsupported file format: pptx")
}

func TestRegistryMissingFile(t *testing.T) {
	res := NewRegistry().Extract(filepath.Join(t.TempDir(), "absent.txt"))
	require.False(t, res.Success)
	assert.NotEmpty(t, res.ErrorMessage)
}

func TestRegistryExtensionsSorted(t *testing.T) {
	assert.Equal(t, []string{".docx", ".pdf", ".rtf", ".txt"}, NewRegistry().Extensions())
}

func writeDocx(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestDocxExtraction(t *testing.T) {
	const doc = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> World</w:t></w:r></w:p>
<w:p><w:r><w:t>Second</w:t></w:r></w:p>
</w:body>
</w:document>`

	res := NewRegistry().Extract(writeDocx(t, doc))
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "Hello World\nSecond", res.Text)
	assert.Equal(t, 2, res.Metadata["paragraph_count"])
}

func TestDocxMissingDocumentXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("word/other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	res := NewRegistry().Extract(path)
	require.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "word/document.xml")
}

func TestRTFExtraction(t *testing.T) {
	const rtf = `{\rtf1\ansi{\fonttbl{\f0 Arial;}}Hello \b World\b0\par Second line\par}`
	path := filepath.Join(t.TempDir(), "doc.rtf")
	require.NoError(t, os.WriteFile(path, []byte(rtf), 0o600))

	res := NewRegistry().Extract(path)
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "Hello World\nSecond line", res.Text)
}

func TestRTFRejectsNonRTF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.rtf")
	require.NoError(t, os.WriteFile(path, []byte("just text"), 0o600))

	res := NewRegistry().Extract(path)
	require.False(t, res.Success)
}

func TestRTFHexEscapesAndIgnorableDestinations(t *testing.T) {
	const rtf = `{\rtf1 caf\'e9{\*\generator Quill;} done}`
	assert.Equal(t, "café done", stripRTF(rtf))
}

func TestPDFInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 garbage"), 0o600))

	res := NewRegistry().Extract(path)
	require.False(t, res.Success)
	assert.Equal(t, "pdf", res.FileType)
}
