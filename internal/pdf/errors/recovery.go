package errors

import (
	"fmt"
	"runtime/debug"
)

// Guard runs fn and converts a panic raised inside it into a PDFError of
// the given type. The PDF library panics on malformed objects and
// unsupported filters instead of returning errors.
func Guard(errorType ErrorType, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PDFError{
				Type:    errorType,
				Message: "malformed content",
				Cause:   &PanicError{Value: r, Stack: string(debug.Stack())},
			}
		}
	}()
	return fn()
}

// PanicError carries a recovered panic value.
type PanicError struct {
	Value any
	Stack string
}

func (p *PanicError) Error() string {
	if err, ok := p.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(p.Value)
}
