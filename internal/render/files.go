package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/a3tai/score-report-reader/internal/calibrate"
	"github.com/a3tai/score-report-reader/internal/marks"
	"github.com/a3tai/score-report-reader/internal/pdf"
)

// maxListed caps the files shown in server info.
const maxListed = 10

// Batch renders a batch result, including the filtered summary and the
// per-row outcomes when present.
func Batch(res *pdf.BatchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyzed %d file(s)", res.FileCount)
	if n := len(res.Errors); n > 0 {
		fmt.Fprintf(&b, ", %d failed", n)
	}
	b.WriteString("\n")
	if res.FailureSummary != "" {
		b.WriteString(res.FailureSummary)
		b.WriteString("\n")
		for _, e := range res.Errors {
			fmt.Fprintf(&b, "  %s: %s\n", e.File, e.Message)
		}
	}
	b.WriteString("\n")
	b.WriteString(Result(res.Result))

	if res.Filtered != nil {
		b.WriteString("\n")
		b.WriteString(title(fmt.Sprintf("Filtered standards (%d)", len(res.Filtered))))
		b.WriteString("\n")
		b.WriteString(SummaryTable(res.Filtered))
		b.WriteString("\n")
	}

	for _, doc := range res.PerFile {
		if len(doc.Rows) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(title(doc.File))
		b.WriteString("\n")
		for _, r := range doc.Rows {
			b.WriteString("  ")
			b.WriteString(r.String())
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Inspection renders the intermediate state of one page.
func Inspection(res *pdf.InspectResult) string {
	p := res.Page
	var b strings.Builder
	fmt.Fprintf(&b, "%s page %d of %d (%.0fx%.0f)\n\n", res.Path, p.Page, res.NumPages, p.Width, p.Height)

	if p.Student != "" {
		fmt.Fprintf(&b, "Student: %s\n", p.Student)
	}
	if p.Undecoded > 0 {
		fmt.Fprintf(&b, "%d image(s) could not be decoded\n", p.Undecoded)
	}
	if p.Student != "" || p.Undecoded > 0 {
		b.WriteString("\n")
	}

	b.WriteString(title("Outcome column"))
	b.WriteString("\n")
	if p.Column.Discovered {
		fmt.Fprintf(&b, "header %q, marks right of x=%.1f, anchor x=%.1f\n\n", p.Column.Header, p.Column.XMin, p.Column.Anchor)
	} else {
		fmt.Fprintf(&b, "no header found, marks right of x=%.1f\n\n", p.Column.XMin)
	}

	b.WriteString(title(fmt.Sprintf("Lines (%d)", len(p.Lines))))
	b.WriteString("\n")
	for _, l := range p.Lines {
		fmt.Fprintf(&b, "  y=%6.1f  %s\n", l.Box.Y0, l.Text)
	}

	b.WriteString("\n")
	b.WriteString(title(fmt.Sprintf("Candidates (%d)", len(p.Candidates))))
	b.WriteString("\n")
	if len(p.Candidates) > 0 {
		t := newTable([]string{"Kind", "X0", "Y0", "W", "H", "Detail", "Accepted", "Outcome"}, 1, 2, 3, 4)
		for _, c := range p.Candidates {
			detail := c.Text
			if c.Font != "" {
				detail = fmt.Sprintf("%q %s", c.Text, c.Font)
			}
			if c.Segments > 0 {
				detail = fmt.Sprintf("%d segments", c.Segments)
			}
			t.Row(c.Kind,
				fmt.Sprintf("%.1f", c.Box.X0),
				fmt.Sprintf("%.1f", c.Box.Y0),
				fmt.Sprintf("%.1f", c.Box.X1-c.Box.X0),
				fmt.Sprintf("%.1f", c.Box.Y1-c.Box.Y0),
				detail,
				strconv.FormatBool(c.Accepted),
				c.Outcome.String())
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(title(fmt.Sprintf("Rows (%d)", len(p.Matches))))
	b.WriteString("\n")
	for _, m := range p.Matches {
		kind := m.MarkKind
		if kind == "" {
			kind = "no mark"
		}
		fmt.Fprintf(&b, "  y=%6.1f  %-12s %-10s %s\n", m.Row.Y0, m.Row.Key, m.Outcome, kind)
	}
	return b.String()
}

// Listing renders the reports found in a directory.
func Listing(res *pdf.ListResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d PDF file(s) in directory: %s\n", res.TotalCount, res.Directory)
	if res.SearchQuery != "" {
		fmt.Fprintf(&b, "Search query: %s\n", res.SearchQuery)
	}
	if len(res.Files) == 0 {
		return b.String()
	}
	b.WriteString("\n")

	headers := []string{"File", "Size", "Modified"}
	if res.Validation != nil {
		headers = append(headers, "Pages", "Status")
	}
	t := newTable(headers, 1)
	for i, f := range res.Files {
		row := []string{f.Name, f.SizeHuman, f.ModifiedTime}
		if res.Validation != nil {
			v := res.Validation[i]
			status := "ok"
			if !v.Valid {
				status = v.ErrorType
			}
			row = append(row, strconv.Itoa(v.Pages), status)
		}
		t.Row(row...)
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}

// Validation renders the structural check of one file.
func Validation(res *pdf.ValidationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", res.Path)
	if !res.Valid {
		fmt.Fprintf(&b, "Valid: no (%s)\n", res.ErrorType)
		fmt.Fprintf(&b, "Reason: %s\n", res.Message)
		return b.String()
	}
	b.WriteString("Valid: yes\n")
	fmt.Fprintf(&b, "Pages: %d\n", res.Pages)
	if res.Version != "" {
		fmt.Fprintf(&b, "PDF version: %s\n", res.Version)
	}
	if res.Encrypted {
		b.WriteString("Encrypted: yes\n")
	}
	return b.String()
}

// ServerInfo renders server information and usage guidance.
func ServerInfo(res *pdf.ServerInfoResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%s\n", res.ServerName, res.Version)
	fmt.Fprintf(&b, "Default directory: %s\n", res.DefaultDirectory)
	fmt.Fprintf(&b, "Max file size: %s\n", res.MaxFileSizeHuman)
	fmt.Fprintf(&b, "Row key patterns: %s\n\n", strings.Join(res.RowKeyPatterns, ", "))

	if n := len(res.DirectoryContents); n > 0 {
		fmt.Fprintf(&b, "Directory contents (%d PDF files):\n", n)
		for i, f := range res.DirectoryContents {
			if i >= maxListed {
				fmt.Fprintf(&b, "   ... and %d more files\n", n-maxListed)
				break
			}
			fmt.Fprintf(&b, "   %d. %s (%s)\n", i+1, f.Name, f.SizeHuman)
		}
	} else {
		b.WriteString("Directory contents: no PDF files found\n")
	}

	b.WriteString("\nAvailable tools:\n")
	for _, tool := range res.AvailableTools {
		fmt.Fprintf(&b, "\n- %s\n", tool.Name)
		fmt.Fprintf(&b, "  Description: %s\n", tool.Description)
		fmt.Fprintf(&b, "  Parameters: %s\n", tool.Parameters)
	}

	b.WriteString("\n")
	b.WriteString(res.UsageGuidance)
	return b.String()
}

// Calibration renders a confusion matrix per mark variant and the
// labels the analyzer disagreed with.
func Calibration(rep *calibrate.Report) string {
	var b strings.Builder
	acc, ok := rep.Overall.Accuracy()
	fmt.Fprintf(&b, "Overall: %d/%d labels agree (%s)\n", rep.Overall.Correct(), rep.Overall.Total(), Percent(acc, ok))

	for _, name := range rep.VariantNames() {
		m := rep.Variants[name]
		acc, ok := m.Accuracy()
		b.WriteString("\n")
		b.WriteString(title(fmt.Sprintf("%s (%d labels, %s)", name, m.Total(), Percent(acc, ok))))
		b.WriteString("\n")
		b.WriteString(confusion(m))
		b.WriteString("\n")
	}

	if len(rep.Mismatches) > 0 {
		b.WriteString("\n")
		b.WriteString(title(fmt.Sprintf("Mismatches (%d)", len(rep.Mismatches))))
		b.WriteString("\n")
		for _, mm := range rep.Mismatches {
			l := mm.Label
			fmt.Fprintf(&b, "  %s p%d %s %s: expected %s, got %s (%s)\n",
				l.File, l.Page, l.Student, l.Standard, l.Outcome(), mm.Predicted, mm.Variant)
		}
	}
	if len(rep.Missing) > 0 {
		b.WriteString("\n")
		b.WriteString(title(fmt.Sprintf("Rows not found (%d)", len(rep.Missing))))
		b.WriteString("\n")
		for _, l := range rep.Missing {
			fmt.Fprintf(&b, "  %s p%d %s %s\n", l.File, l.Page, l.Student, l.Standard)
		}
	}
	if len(rep.Failed) > 0 {
		b.WriteString("\n")
		b.WriteString(title(fmt.Sprintf("Unreadable files (%d)", len(rep.Failed))))
		b.WriteString("\n")
		files := make([]string, 0, len(rep.Failed))
		for f := range rep.Failed {
			files = append(files, f)
		}
		sort.Strings(files)
		for _, f := range files {
			fmt.Fprintf(&b, "  %s: %s\n", f, rep.Failed[f])
		}
	}
	return b.String()
}

var matrixOrder = []marks.Outcome{marks.Correct, marks.Incorrect, marks.Partial, marks.Unknown}

func confusion(m *calibrate.Matrix) string {
	headers := []string{"expected \\ got"}
	for _, o := range matrixOrder {
		headers = append(headers, o.String())
	}
	t := newTable(headers, 1, 2, 3, 4)
	for _, want := range matrixOrder {
		row := []string{want.String()}
		for _, got := range matrixOrder {
			row = append(row, strconv.Itoa(m[want][got]))
		}
		t.Row(row...)
	}
	return t.String()
}
