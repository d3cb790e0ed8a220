// Package render formats analysis results for terminals and text
// transports. Colors are applied only when the output supports them.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/a3tai/score-report-reader/internal/report"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
	levelStyles = map[report.Level]lipgloss.Style{
		report.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8")),
		report.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")),
		report.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")),
	}
	bandStyles = map[report.Band]lipgloss.Style{
		report.BandStrength:       lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")),
		report.BandDeveloping:     lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")),
		report.BandNeedsAttention: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")),
	}
)

// Percent formats a success rate; rates that are undefined show as "n/a".
func Percent(rate float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", 100*rate)
}

// newTable returns a table with the shared border and cell styles.
// rightAlign lists columns holding numbers.
func newTable(headers []string, rightAlign ...int) *table.Table {
	right := make(map[int]bool, len(rightAlign))
	for _, c := range rightAlign {
		right[c] = true
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := cellStyle
			if row == table.HeaderRow {
				s = headerStyle
			}
			if right[col] {
				return s.Align(lipgloss.Right)
			}
			return s
		})
}

func title(s string) string {
	return titleStyle.Render(s)
}

// SummaryTable renders a standards summary ranked by success rate.
func SummaryTable(s report.StandardsSummary) string {
	if len(s) == 0 {
		return mutedStyle.Render("no standards tallied")
	}
	t := newTable([]string{"Standard", "Correct", "Incorrect", "Partial", "Rate", "Band"}, 1, 2, 3, 4)
	for _, r := range s.Rows() {
		band := ""
		if r.HasRate {
			b := report.BandFor(r.SuccessRate)
			band = bandStyles[b].Render(string(b))
		}
		t.Row(r.Key,
			strconv.Itoa(r.Tally.Correct),
			strconv.Itoa(r.Tally.Incorrect),
			strconv.Itoa(r.Tally.Partial),
			Percent(r.SuccessRate, r.HasRate),
			band)
	}
	return t.String()
}

// StudentTable renders one line per student, sorted by name.
func StudentTable(res *report.Result) string {
	if len(res.Students) == 0 {
		return mutedStyle.Render("no students found")
	}
	t := newTable([]string{"Student", "Lexile", "Proficiency", "Rows", "Matched", "Unknown", "Rate"}, 3, 4, 5, 6)
	for _, name := range res.StudentNames() {
		s := res.Students[name]
		rate, ok := report.SuccessRate(s.Overall())
		t.Row(s.Name,
			s.Lexile.String(),
			s.Proficiency,
			strconv.Itoa(s.RowsFound),
			strconv.Itoa(s.MarksMatched),
			strconv.Itoa(s.UnknownCount()),
			Percent(rate, ok))
	}
	return t.String()
}

// Diagnostics renders the diagnostic log one entry per line, colored by
// level.
func Diagnostics(ds report.Diagnostics) string {
	if len(ds) == 0 {
		return mutedStyle.Render("no diagnostics")
	}
	lines := make([]string, len(ds))
	for i, d := range ds {
		lines[i] = levelStyles[d.Level].Render(d.String())
	}
	return strings.Join(lines, "\n")
}

// Result renders a batch result: students, summary, then diagnostics.
func Result(res *report.Result) string {
	var b strings.Builder
	if res.RunID != "" {
		b.WriteString(mutedStyle.Render("run " + res.RunID))
		b.WriteString("\n\n")
	}
	b.WriteString(title(fmt.Sprintf("Students (%d)", len(res.Students))))
	b.WriteString("\n")
	b.WriteString(StudentTable(res))
	b.WriteString("\n\n")
	b.WriteString(title(fmt.Sprintf("Standards (%d)", len(res.Summary))))
	b.WriteString("\n")
	b.WriteString(SummaryTable(res.Summary))
	b.WriteString("\n\n")
	b.WriteString(title("Diagnostics"))
	b.WriteString("\n")
	b.WriteString(Diagnostics(res.Diagnostics))
	b.WriteString("\n")
	return b.String()
}
