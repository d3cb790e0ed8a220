package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	AnalyzeDescription = `Parse standardized-test score reports and return per-student, per-standard outcome tallies.

**When to use:** Need counts of Correct, Incorrect and Partial outcomes for each reading standard (e.g. 3.RC.1) across one or many score report PDFs.

**Why it's useful:** Reads row identifiers, locates the outcome mark on each row (font glyph, drawn vector or embedded image), classifies it and attributes it to the student whose report the row belongs to. Every skipped mark, unlabeled row and failed page is reported as a diagnostic instead of being dropped silently.

**Examples:**
• Class summary: "Analyze every report in /reports/grade3 and show the success rate per standard"
• One student: "Analyze jane-doe.pdf and list her Incorrect standards"
• Subgroup: "Analyze the batch, filtered to students Below Proficiency"

**Common workflows:**
1. Batch Review: score_report_list → score_report_analyze → inspect diagnostics
2. Subgroup Analysis: analyze with proficiency or Lexile filters → compare to the full summary
3. Troubleshooting: analyze → see unknown marks → score_report_inspect the page

**Best practices:** Check the diagnostics list before trusting the summary. Unknown marks are counted separately and never enter the success rate.`

	InspectDescription = `Show the intermediate parsing state of one report page.

**When to use:** A page's results look wrong, marks are reported as unknown, or a new report layout needs to be checked before batch use.

**Why it's useful:** Returns the reconstructed text lines, the row identifiers found, the outcome column boundary, every mark candidate with its classification and the final row-to-mark matches.

**Examples:**
• Debug unknown marks: "Inspect page 2 of jane-doe.pdf to see why its marks are unknown"
• Check a new layout: "Inspect page 1 of the new district template"

**Common workflows:**
1. Diagnosis: score_report_analyze shows a warning → score_report_inspect that page → adjust configuration
2. Layout Check: inspect a sample page → confirm the column and rows → analyze the batch

**Best practices:** Pages are numbered from 1. Candidates marked as not accepted were filtered out before classification.`

	ListDescription = `Find score report PDFs in a directory with optional fuzzy filename search.

**When to use:** Need to know which report files are available before analyzing them.

**Why it's useful:** Walks the directory tree, skips hidden folders and files that are not PDFs or exceed the size limit, and can run a structural check on every match.

**Examples:**
• All reports: "List the reports in /reports/grade3"
• By name: "Find reports whose filename mentions 'smith'"
• With checks: "List the reports and validate each one"

**Common workflows:**
1. Batch Setup: list → analyze the returned files
2. Quality Check: list with validation → fix or remove broken files → analyze

**Best practices:** Use a query to narrow large directories. Validation opens every file, so leave it off for quick listings.`

	ValidateDescription = `Check that a file is a readable PDF before analyzing it.

**When to use:** Before analyzing files from an unknown source, or when a batch reports a file as failed.

**Why it's useful:** Reports the page count, PDF version and encryption state, or the exact error category (not a PDF, corrupted, encrypted, too large).

**Examples:**
• Upload check: "Validate new-report.pdf"
• Failure triage: "Validate the file the last analysis could not parse"

**Best practices:** Validation is structural only and does not look for row identifiers.`

	ServerInfoDescription = `Get server configuration, available tools and the reports in the default directory.

**When to use:** At the start of a session to learn the default directory, file size limit and row identifier patterns in effect.

**Why it's useful:** Lists every tool with its parameters together with a cached listing of the default directory.

**Best practices:** Call this first when the report location is unknown.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"score_report_analyze":     AnalyzeDescription,
	"score_report_inspect":     InspectDescription,
	"score_report_list":        ListDescription,
	"score_report_validate":    ValidateDescription,
	"score_report_server_info": ServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the names of all available tools, sorted
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
