package storage

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()

	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return fs
}

func pdfBytes(body string) []byte {
	return []byte("%PDF-1.7\n" + body)
}

func TestFileStore_SavePDF(t *testing.T) {
	fs := newTestFileStore(t)
	id := uuid.New()

	payload := pdfBytes("content")
	size, err := fs.SavePDF(id, bytes.NewReader(payload), 1024)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), size)

	stored, err := os.ReadFile(fs.PDFPath(id))
	require.NoError(t, err)
	assert.Equal(t, payload, stored)
}

func TestFileStore_SavePDF_RejectsNonPDF(t *testing.T) {
	fs := newTestFileStore(t)

	_, err := fs.SavePDF(uuid.New(), strings.NewReader("hello world"), 1024)
	assert.ErrorIs(t, err, ErrNotPDF)

	// A short file without the full magic is also not a PDF.
	_, err = fs.SavePDF(uuid.New(), strings.NewReader("%PD"), 1024)
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestFileStore_SavePDF_RejectsEmpty(t *testing.T) {
	fs := newTestFileStore(t)

	_, err := fs.SavePDF(uuid.New(), strings.NewReader(""), 1024)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestFileStore_SavePDF_RejectsOversize(t *testing.T) {
	fs := newTestFileStore(t)
	id := uuid.New()

	payload := pdfBytes(strings.Repeat("x", 100))
	_, err := fs.SavePDF(id, bytes.NewReader(payload), 50)
	assert.ErrorIs(t, err, ErrTooLarge)

	// Nothing is left behind after a rejected upload.
	_, statErr := os.Stat(fs.UploadDir(id))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStore_SavePDF_ExactLimitAccepted(t *testing.T) {
	fs := newTestFileStore(t)
	id := uuid.New()

	payload := pdfBytes("abc")
	size, err := fs.SavePDF(id, bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), size)
}

func TestFileStore_WriteTextAndRemove(t *testing.T) {
	fs := newTestFileStore(t)
	id := uuid.New()

	require.NoError(t, fs.WriteText(id, "--- PAGE 1 ---\nhello"))

	data, err := os.ReadFile(fs.TextPath(id))
	require.NoError(t, err)
	assert.Equal(t, "--- PAGE 1 ---\nhello", string(data))

	require.NoError(t, fs.Remove(id))
	_, statErr := os.Stat(fs.UploadDir(id))
	assert.True(t, os.IsNotExist(statErr))
}
