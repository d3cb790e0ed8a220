package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Level is the severity of a diagnostic.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

func (l Level) MarshalJSON() ([]byte, error) { return json.Marshal(l.String()) }

// DiagnosticKind names what a diagnostic reports on.
type DiagnosticKind string

const (
	KindStudentsFound  DiagnosticKind = "students_found"
	KindStudentRows    DiagnosticKind = "student_rows"
	KindMatchRatio     DiagnosticKind = "match_ratio"
	KindOrphanedRows   DiagnosticKind = "orphaned_rows"
	KindNoRows         DiagnosticKind = "no_rows"
	KindNoStudents     DiagnosticKind = "no_students"
	KindFileFailed     DiagnosticKind = "file_failed"
	KindPageFailed     DiagnosticKind = "page_failed"
	KindColumnFallback DiagnosticKind = "column_fallback"
	KindUnknownMarks   DiagnosticKind = "unknown_marks"
)

// Diagnostic is one entry of the diagnostic log returned with every
// result. It is data for the caller to show, separate from logging.
type Diagnostic struct {
	Level   Level          `json:"level"`
	Kind    DiagnosticKind `json:"kind"`
	File    string         `json:"file,omitempty"`
	Page    int            `json:"page,omitempty"`
	Student string         `json:"student,omitempty"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", d.Level)
	if d.File != "" {
		b.WriteString(d.File)
		if d.Page > 0 {
			fmt.Fprintf(&b, " p%d", d.Page)
		}
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	return b.String()
}

// Diagnostics is an ordered diagnostic log.
type Diagnostics []Diagnostic

func (ds *Diagnostics) add(level Level, kind DiagnosticKind, file string, page int, student, format string, args ...any) {
	*ds = append(*ds, Diagnostic{
		Level:   level,
		Kind:    kind,
		File:    file,
		Page:    page,
		Student: student,
		Message: fmt.Sprintf(format, args...),
	})
}

// Count returns how many entries have the given kind.
func (ds Diagnostics) Count(kind DiagnosticKind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Lines renders every entry with String.
func (ds Diagnostics) Lines() []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}

// studentList formats up to five names, then a count of the rest.
func studentList(names []string) string {
	const shown = 5
	if len(names) <= shown {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:shown], ", "), len(names)-shown)
}
