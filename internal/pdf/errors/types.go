// Package errors classifies file-level failures so a batch can report each
// unreadable document and carry on with the rest.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// PDFError is a failure to read one file, or one page of it.
type PDFError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	FilePath   string    `json:"file_path,omitempty"`
	PageNumber int       `json:"page_number,omitempty"`
	Cause      error     `json:"-"`
}

// ErrorType represents the categories of input failure
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeInvalidInput
	ErrorTypeFileNotFound
	ErrorTypeFileTooLarge
	ErrorTypeNotPDF
	ErrorTypeCorrupted
	ErrorTypeEncrypted
	ErrorTypePageExtraction
)

// Error implements the error interface
func (e *PDFError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type, e.Message)
	if e.PageNumber > 0 {
		fmt.Fprintf(&b, " (page %d)", e.PageNumber)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *PDFError) Unwrap() error { return e.Cause }

// Is matches another *PDFError of the same type, so callers can test with
// errors.Is(err, &PDFError{Type: ErrorTypeEncrypted}).
func (e *PDFError) Is(target error) bool {
	t, ok := target.(*PDFError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeInvalidInput:
		return "INVALID_INPUT"
	case ErrorTypeFileNotFound:
		return "FILE_NOT_FOUND"
	case ErrorTypeFileTooLarge:
		return "FILE_TOO_LARGE"
	case ErrorTypeNotPDF:
		return "NOT_PDF"
	case ErrorTypeCorrupted:
		return "CORRUPTED"
	case ErrorTypeEncrypted:
		return "ENCRYPTED"
	case ErrorTypePageExtraction:
		return "PAGE_EXTRACTION"
	default:
		return "UNKNOWN"
	}
}

// IsRecoverable reports whether the rest of the document can still be used.
// Only page-level failures are; everything else loses the whole file.
func (et ErrorType) IsRecoverable() bool {
	return et == ErrorTypePageExtraction
}

// New creates a PDFError of the given type
func New(errorType ErrorType, format string, args ...any) *PDFError {
	return &PDFError{Type: errorType, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under errorType, keeping it as the cause
func Wrap(errorType ErrorType, err error, format string, args ...any) *PDFError {
	return &PDFError{Type: errorType, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithFile adds file path information to an existing PDFError
func (e *PDFError) WithFile(filePath string) *PDFError {
	e.FilePath = filePath
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// TypeOf returns the type of the first PDFError in err's chain, or
// ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var pe *PDFError
	if stderrors.As(err, &pe) {
		return pe.Type
	}
	return ErrorTypeUnknown
}

// ErrorCollection gathers per-file failures of a batch
type ErrorCollection struct {
	Errors []*PDFError `json:"errors"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{Errors: make([]*PDFError, 0)}
}

// Add records err for file. Errors that are not PDFErrors are kept as
// ErrorTypeUnknown.
func (ec *ErrorCollection) Add(file string, err error) {
	var pe *PDFError
	if !stderrors.As(err, &pe) {
		pe = Wrap(ErrorTypeUnknown, err, "processing failed")
	}
	if pe.FilePath == "" {
		pe.FilePath = file
	}
	ec.Errors = append(ec.Errors, pe)
}

// Len returns the number of collected errors
func (ec *ErrorCollection) Len() int { return len(ec.Errors) }

// CountByType tallies the collected errors per type
func (ec *ErrorCollection) CountByType() map[ErrorType]int {
	counts := make(map[ErrorType]int)
	for _, e := range ec.Errors {
		counts[e.Type]++
	}
	return counts
}

// Summary returns a text summary of all errors
func (ec *ErrorCollection) Summary() string {
	if len(ec.Errors) == 0 {
		return "No errors"
	}
	counts := ec.CountByType()
	kinds := make([]ErrorType, 0, len(counts))
	for t := range counts {
		kinds = append(kinds, t)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	parts := make([]string, len(kinds))
	for i, t := range kinds {
		parts[i] = fmt.Sprintf("%d %s", counts[t], t)
	}
	return fmt.Sprintf("%d file(s) could not be read: %s", len(ec.Errors), strings.Join(parts, ", "))
}
