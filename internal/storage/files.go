package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// File validation errors, mapped to HTTP status codes by the handlers.
var (
	ErrNotPDF   = errors.New("file is not a PDF")
	ErrTooLarge = errors.New("file exceeds upload size limit")
	ErrEmpty    = errors.New("file is empty")
)

var pdfMagic = []byte("%PDF-")

// FileStore persists raw uploads and derived text on disk, one directory
// per upload ID.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &FileStore{root: root}, nil
}

// UploadDir returns the directory holding an upload's files.
func (fs *FileStore) UploadDir(id uuid.UUID) string {
	return filepath.Join(fs.root, id.String())
}

// PDFPath returns the path of the stored original document.
func (fs *FileStore) PDFPath(id uuid.UUID) string {
	return filepath.Join(fs.UploadDir(id), "original.pdf")
}

// TextPath returns the path of the extracted full-text file.
func (fs *FileStore) TextPath(id uuid.UUID) string {
	return filepath.Join(fs.UploadDir(id), "text.txt")
}

// SavePDF validates and writes the uploaded document. The first bytes must
// carry the %PDF- magic and the total size must stay within maxBytes.
// Returns the number of bytes written.
func (fs *FileStore) SavePDF(id uuid.UUID, src io.Reader, maxBytes int64) (int64, error) {
	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(src, head)
	if err == io.EOF {
		return 0, ErrEmpty
	}
	if err == io.ErrUnexpectedEOF || (err == nil && !bytes.HasPrefix(head, pdfMagic)) {
		return 0, ErrNotPDF
	}
	if err != nil {
		return 0, fmt.Errorf("read upload: %w", err)
	}

	dir := fs.UploadDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create upload directory: %w", err)
	}

	dst, err := os.Create(fs.PDFPath(id))
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := dst.Write(head[:n]); err != nil {
		return 0, fmt.Errorf("write upload file: %w", err)
	}

	// +1 so a copy that fills the limit exactly is distinguishable from
	// one that overflows it.
	written, err := io.Copy(dst, io.LimitReader(src, maxBytes-int64(n)+1))
	if err != nil {
		return 0, fmt.Errorf("write upload file: %w", err)
	}

	total := written + int64(n)
	if total > maxBytes {
		_ = dst.Close()
		_ = os.RemoveAll(dir)
		return 0, ErrTooLarge
	}

	if err := dst.Close(); err != nil {
		return 0, fmt.Errorf("flush upload file: %w", err)
	}
	return total, nil
}

// WriteText stores the extracted full text alongside the original document.
func (fs *FileStore) WriteText(id uuid.UUID, text string) error {
	if err := os.MkdirAll(fs.UploadDir(id), 0o755); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}
	if err := os.WriteFile(fs.TextPath(id), []byte(text), 0o644); err != nil {
		return fmt.Errorf("write text file: %w", err)
	}
	return nil
}

// Remove deletes all files stored for an upload.
func (fs *FileStore) Remove(id uuid.UUID) error {
	return os.RemoveAll(fs.UploadDir(id))
}
