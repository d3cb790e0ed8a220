package pdf

import (
	"github.com/a3tai/score-report-reader/internal/report"
)

// FileInfo represents information about a PDF file
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	SizeHuman    string `json:"size_human"`
	ModifiedTime string `json:"modified_time"`
}

// Request Types

// AnalyzeRequest selects the reports of one batch run. Files are analyzed
// when given; otherwise every report under Directory is.
type AnalyzeRequest struct {
	Files     []string      `json:"files,omitempty"`
	Directory string        `json:"directory,omitempty"`
	Filter    report.Filter `json:"filter,omitempty"`
	// Rows includes per-row outcomes in document results.
	Rows bool `json:"rows,omitempty"`
}

// InspectRequest selects one page of one report.
type InspectRequest struct {
	Path string `json:"path"`
	Page int    `json:"page"`
}

// ListRequest searches a directory for reports.
type ListRequest struct {
	Directory string `json:"directory"`
	Query     string `json:"query"`
	// Validate runs the structural check on every listed file.
	Validate bool `json:"validate,omitempty"`
}

// Response Types

// BatchResult is the outcome of one analysis run: the merged students,
// the folded summary and the diagnostic log, plus the per-document
// results the merge was built from.
type BatchResult struct {
	*report.Result
	// Filtered is the summary over the students matching the request
	// filter; nil when no filter was given.
	Filtered  report.StandardsSummary `json:"filtered,omitempty"`
	PerFile   []report.DocumentResult `json:"per_file,omitempty"`
	Errors    []FileError             `json:"errors,omitempty"`
	FileCount int                     `json:"file_count"`
	// FailureSummary and FailuresByType break Errors down by error type.
	FailureSummary string         `json:"failure_summary,omitempty"`
	FailuresByType map[string]int `json:"failures_by_type,omitempty"`
}

// FileError is a file that could not be read at all.
type FileError struct {
	File    string `json:"file"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// InspectResult is the intermediate state of one page.
type InspectResult struct {
	Path     string                 `json:"path"`
	NumPages int                    `json:"num_pages"`
	Page     *report.PageInspection `json:"page"`
}

// ValidationResult is the structural check of one file.
type ValidationResult struct {
	Path      string `json:"path"`
	Valid     bool   `json:"valid"`
	Pages     int    `json:"pages,omitempty"`
	Version   string `json:"version,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ListResult holds the reports found in a directory.
type ListResult struct {
	Files       []FileInfo          `json:"files"`
	Validation  []*ValidationResult `json:"validation,omitempty"`
	TotalCount  int                 `json:"total_count"`
	Directory   string              `json:"directory"`
	SearchQuery string              `json:"search_query,omitempty"`
}

// ServerInfoResult represents server information and usage guidance
type ServerInfoResult struct {
	ServerName        string     `json:"server_name"`
	Version           string     `json:"version"`
	DefaultDirectory  string     `json:"default_directory"`
	MaxFileSize       int64      `json:"max_file_size"`
	MaxFileSizeHuman  string     `json:"max_file_size_human"`
	RowKeyPatterns    []string   `json:"row_key_patterns"`
	AvailableTools    []ToolInfo `json:"available_tools"`
	DirectoryContents []FileInfo `json:"directory_contents"`
	UsageGuidance     string     `json:"usage_guidance"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  string `json:"parameters"`
}
