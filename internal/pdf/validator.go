package pdf

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/a3tai/score-report-reader/internal/pdf/errors"
)

// pdfHeader is the magic every PDF starts with, possibly after junk bytes.
var pdfHeader = []byte("%PDF-")

// headerWindow is how far into the file the header may appear.
const headerWindow = 1024

// Validator handles PDF file validation operations
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// CheckFile performs the cheap checks that run before a file is read:
// it exists, is a regular non-empty file with a .pdf extension and is
// within the size limit.
func (v *Validator) CheckFile(filePath string) (os.FileInfo, error) {
	if filePath == "" {
		return nil, errors.New(errors.ErrorTypeInvalidInput, "path cannot be empty")
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrorTypeFileNotFound, "file does not exist").WithFile(filePath)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInvalidInput, err, "cannot access file").WithFile(filePath)
	}
	if err := v.ValidateFileInfo(filePath, info); err != nil {
		return nil, err
	}
	return info, nil
}

// ValidateFileInfo performs basic validation on file info without opening the PDF
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return errors.New(errors.ErrorTypeInvalidInput, "path is a directory, not a file").WithFile(filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return errors.New(errors.ErrorTypeNotPDF, "file does not have a .pdf extension").WithFile(filePath)
	}

	if fileInfo.Size() == 0 {
		return errors.New(errors.ErrorTypeNotPDF, "file is empty").WithFile(filePath)
	}

	if fileInfo.Size() > v.maxFileSize {
		return errors.New(errors.ErrorTypeFileTooLarge, "file too large: %s (max: %s)",
			humanize.IBytes(uint64(fileInfo.Size())), humanize.IBytes(uint64(v.maxFileSize))).WithFile(filePath)
	}

	return nil
}

// ReadFile checks and reads a whole file. The handle is closed before
// returning on every path.
func (v *Validator) ReadFile(filePath string) ([]byte, error) {
	if _, err := v.CheckFile(filePath); err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInvalidInput, err, "cannot open file").WithFile(filePath)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, v.maxFileSize+1))
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInvalidInput, err, "cannot read file").WithFile(filePath)
	}
	if int64(len(data)) > v.maxFileSize {
		return nil, errors.New(errors.ErrorTypeFileTooLarge, "file grew past %s while reading",
			humanize.IBytes(uint64(v.maxFileSize))).WithFile(filePath)
	}
	if !hasHeader(data) {
		return nil, errors.New(errors.ErrorTypeNotPDF, "no %%PDF- header").WithFile(filePath)
	}
	return data, nil
}

func hasHeader(data []byte) bool {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	return bytes.Contains(window, pdfHeader)
}

// ValidateFile runs the file checks and a structural read with pdfcpu in
// relaxed mode. Problems are reported in the result, not as an error.
func (v *Validator) ValidateFile(filePath string) *ValidationResult {
	result := &ValidationResult{Path: filePath}

	data, err := v.ReadFile(filePath)
	if err != nil {
		result.fail(err)
		return result
	}

	err = errors.Guard(errors.ErrorTypeCorrupted, func() error {
		conf := model.NewDefaultConfiguration()
		conf.ValidationMode = model.ValidationRelaxed

		ctx, err := api.ReadContext(bytes.NewReader(data), conf)
		if err != nil {
			return classifyPDFCPU(err)
		}
		result.Pages = ctx.PageCount
		result.Encrypted = ctx.Encrypt != nil
		if ctx.HeaderVersion != nil {
			result.Version = ctx.HeaderVersion.String()
		}
		if err := api.ValidateContext(ctx); err != nil {
			return errors.Wrap(errors.ErrorTypeCorrupted, err, "structure does not validate")
		}
		return nil
	})
	if err != nil {
		result.fail(err)
		return result
	}
	if result.Pages == 0 {
		result.fail(errors.New(errors.ErrorTypeCorrupted, "document has no pages"))
		return result
	}

	result.Valid = true
	return result
}

func (r *ValidationResult) fail(err error) {
	r.Valid = false
	r.ErrorType = errors.TypeOf(err).String()
	r.Message = err.Error()
}

func classifyPDFCPU(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "password"), strings.Contains(msg, "encrypt"):
		return errors.Wrap(errors.ErrorTypeEncrypted, err, "document is encrypted")
	case strings.Contains(msg, "header"):
		return errors.Wrap(errors.ErrorTypeNotPDF, err, "not a PDF document")
	default:
		return errors.Wrap(errors.ErrorTypeCorrupted, err, "cannot parse document structure")
	}
}
