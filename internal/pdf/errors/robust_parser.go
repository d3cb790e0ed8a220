package errors

import (
	"bytes"
	stderrors "errors"
	"strings"

	"github.com/ledongthuc/pdf"
)

// OpenReader opens data with the PDF library and classifies any failure.
// Documents encrypted with a user password are rejected; ones that open
// with the empty password are read normally.
func OpenReader(data []byte) (*pdf.Reader, error) {
	var r *pdf.Reader
	err := Guard(ErrorTypeCorrupted, func() error {
		var openErr error
		r, openErr = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
		return openErr
	})
	if err == nil {
		return r, nil
	}

	var pe *PDFError
	if stderrors.As(err, &pe) {
		return nil, pe
	}
	if stderrors.Is(err, pdf.ErrInvalidPassword) {
		return nil, Wrap(ErrorTypeEncrypted, err, "document is encrypted")
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not a PDF file"):
		return nil, Wrap(ErrorTypeNotPDF, err, "not a PDF document")
	case strings.Contains(msg, "encrypt"):
		return nil, Wrap(ErrorTypeEncrypted, err, "document is encrypted")
	default:
		return nil, Wrap(ErrorTypeCorrupted, err, "cannot parse document structure")
	}
}
