// Package extract produces plain text from CV documents.
package extract

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/spf13/afero"
)

var ErrNoText = errors.New("extract: document has no text")

// PDFExtractor reads PDF files from a filesystem.
type PDFExtractor struct {
	fs afero.Fs
}

// NewPDFExtractor creates a PDFExtractor reading from fsys.
func NewPDFExtractor(fsys afero.Fs) *PDFExtractor {
	return &PDFExtractor{fs: fsys}
}

// Extract returns the concatenated plain text of every page of path.
// Malformed documents are reported as errors.
func (e *PDFExtractor) Extract(path string) (text string, err error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse %s: %v", path, r)
		}
	}()

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", path, err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", path, err)
	}

	text = strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%s: %w", path, ErrNoText)
	}
	return text, nil
}
