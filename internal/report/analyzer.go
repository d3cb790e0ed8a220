package report

import (
	"fmt"

	"github.com/a3tai/score-report-reader/internal/config"
	"github.com/a3tai/score-report-reader/internal/layout"
	"github.com/a3tai/score-report-reader/internal/marks"
)

// minMatchRatio is the share of rows with a classified mark below which a
// student's results are flagged for review.
const minMatchRatio = 0.8

// RowOutcome is the resolved result of one row.
type RowOutcome struct {
	Row      RowKey        `json:"row"`
	Outcome  marks.Outcome `json:"outcome"`
	MarkKind string        `json:"mark_kind,omitempty"`
	MarkBox  *layout.Rect  `json:"mark_box,omitempty"`
	// Student is empty for orphaned rows.
	Student string `json:"student,omitempty"`
}

// DocumentResult is everything recovered from one file.
type DocumentResult struct {
	File         string           `json:"file"`
	Pages        int              `json:"pages"`
	RowsFound    int              `json:"rows_found"`
	MarksMatched int              `json:"marks_matched"`
	Unknown      int              `json:"unknown"`
	Orphaned     int              `json:"orphaned"`
	Students     []*StudentRecord `json:"students"`
	Rows         []RowOutcome     `json:"rows,omitempty"`
	Diagnostics  Diagnostics      `json:"diagnostics"`
}

// PageFailed records a page the extractor could not read. The rest of the
// document is still analyzed.
func (r *DocumentResult) PageFailed(page int, err error) {
	r.Diagnostics.add(LevelWarning, KindPageFailed, r.File, page, "", "page skipped: %v", err)
}

// Analyzer runs the row, mark and session pipeline over the pages of a
// document. It holds no per-document state and is safe for concurrent use.
type Analyzer struct {
	rows       *RowKeyExtractor
	fields     FieldPatterns
	column     layout.ColumnRule
	classifier *marks.Classifier
	slack      float64
}

// NewAnalyzer compiles the parser configuration.
func NewAnalyzer(cfg config.ParserConfig) (*Analyzer, error) {
	rows, err := NewRowKeyExtractor(cfg.RowKeyPatterns)
	if err != nil {
		return nil, err
	}
	fields, err := CompileFieldPatterns(cfg.AnnouncementPatterns, cfg.LexilePatterns, cfg.ProficiencyPatterns)
	if err != nil {
		return nil, err
	}
	headers, err := compileAll("outcome header", cfg.OutcomeHeaderPatterns, "")
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		rows:   rows,
		fields: fields,
		column: layout.ColumnRule{
			Headers:          headers,
			MinFraction:      cfg.MinHeaderFraction,
			Slack:            cfg.ColumnHeaderSlack,
			FallbackFraction: cfg.ColumnFallbackFraction,
		},
		classifier: NewClassifier(cfg),
		slack:      cfg.RowSlackFraction,
	}, nil
}

// NewClassifier builds the mark classifier from the parser configuration.
func NewClassifier(cfg config.ParserConfig) *marks.Classifier {
	reps := make([]marks.Repertoire, len(cfg.GlyphRepertoires))
	for i, r := range cfg.GlyphRepertoires {
		reps[i] = marks.Repertoire{
			Name:      r.Name,
			Font:      r.Font,
			Correct:   r.Correct,
			Incorrect: r.Incorrect,
			Partial:   r.Partial,
		}
	}
	c := &marks.Classifier{
		Vector: marks.VectorClassifier{
			MinSize:          cfg.Vector.MinSize,
			MaxSize:          cfg.Vector.MaxSize,
			MinAspect:        cfg.Vector.MinAspect,
			MaxAspect:        cfg.Vector.MaxAspect,
			TypicalTolerance: cfg.Vector.TypicalTolerance,
		},
		Raster: marks.RasterClassifier{
			MaxSize:       cfg.Raster.MaxSize,
			MinAspect:     cfg.Raster.MinAspect,
			MaxAspect:     cfg.Raster.MaxAspect,
			MinPixels:     cfg.Raster.MinPixels,
			DarkThreshold: uint8(cfg.Raster.DarkThreshold),
			Grid:          cfg.Raster.Grid,
		},
	}
	if len(reps) > 0 {
		c.Glyph = marks.NewGlyphClassifier(reps)
	}
	return c
}

// pageScan is one page run through index, rows, column and locator.
type pageScan struct {
	index      *layout.Index
	rows       []RowKey
	column     layout.Column
	classifier *marks.Classifier
	matches    []Match
}

func (a *Analyzer) scan(page layout.Page, carried *layout.Column) pageScan {
	idx := layout.NewIndex(page, a.classifier.GlyphFilter())
	col := idx.OutcomeColumn(a.column)
	if !col.Discovered && carried != nil {
		col = *carried
	}
	cls := a.classifier.ForPage(page, col)
	rows := a.rows.Extract(page)
	return pageScan{
		index:      idx,
		rows:       rows,
		column:     col,
		classifier: cls,
		matches:    Locate(rows, idx, col, LocateOptions{Slack: a.slack, Accept: cls.Accepts}),
	}
}

// AnalyzeDocument processes pages in order and returns the students found,
// every row outcome and the document's diagnostics. Session state does not
// leak between calls: each document starts with no active student.
func (a *Analyzer) AnalyzeDocument(file string, pages []layout.Page) DocumentResult {
	res := DocumentResult{File: file, Pages: len(pages)}
	tracker := NewTracker(a.fields)

	var carried *layout.Column
	fallbackNoted := false

	for _, page := range pages {
		ps := a.scan(page, carried)
		if ps.column.Discovered {
			col := ps.column
			carried = &col
		} else if len(ps.rows) > 0 && !fallbackNoted {
			fallbackNoted = true
			res.Diagnostics.add(LevelInfo, KindColumnFallback, file, page.Number, "",
				"outcome column header not found; using marks right of x=%.0f", ps.column.XMin)
		}

		segs := tracker.ObservePage(ps.index.Lines())

		orphaned := 0
		for _, m := range ps.matches {
			out := RowOutcome{Row: m.Row, Outcome: marks.Unknown}
			if m.Mark != nil {
				out.Outcome = ps.classifier.Classify(m.Mark)
				out.MarkKind = m.Mark.Kind().String()
				box := m.Mark.Bounds()
				out.MarkBox = &box
			}
			res.RowsFound++

			s := StudentAt(segs, m.Row.Y0)
			if s == nil {
				orphaned++
				res.Rows = append(res.Rows, out)
				continue
			}
			out.Student = s.Name
			s.Record(m.Row.Key, out.Outcome, m.Mark != nil)
			if m.Mark != nil {
				res.MarksMatched++
			}
			if out.Outcome == marks.Unknown {
				res.Unknown++
			}
			res.Rows = append(res.Rows, out)
		}
		if orphaned > 0 {
			res.Orphaned += orphaned
			res.Diagnostics.add(LevelWarning, KindOrphanedRows, file, page.Number, "",
				"%d rows discarded: no student announced before this page", orphaned)
		}
	}

	res.Students = tracker.Students()
	for _, s := range res.Students {
		s.Files = []string{file}
	}
	a.summarize(&res)
	return res
}

func (a *Analyzer) summarize(res *DocumentResult) {
	file := res.File
	ds := &res.Diagnostics

	if res.RowsFound == 0 {
		ds.add(LevelWarning, KindNoRows, file, 0, "",
			"no standard codes recognized on %d pages; the report layout may not be supported", res.Pages)
	}
	if len(res.Students) == 0 {
		ds.add(LevelWarning, KindNoStudents, file, 0, "",
			"no student name announcements found; student identity markers are missing")
		return
	}

	names := make([]string, len(res.Students))
	for i, s := range res.Students {
		names[i] = s.Name
	}
	ds.add(LevelInfo, KindStudentsFound, file, 0, "", "Found %d students: %s", len(names), studentList(names))

	for _, s := range res.Students {
		unknown := s.UnknownCount()
		ds.add(LevelInfo, KindStudentRows, file, 0, s.Name, "%s: %d standards, %d marks matched, %d unknown",
			s.Name, s.RowsFound, s.MarksMatched, unknown)
		if s.RowsFound == 0 {
			continue
		}
		classified := s.RowsFound - unknown
		if ratio := float64(classified) / float64(s.RowsFound); ratio < minMatchRatio {
			ds.add(LevelWarning, KindMatchRatio, file, 0, s.Name,
				"%s: only %d of %d rows have a classified mark (%.0f%%); review before trusting",
				s.Name, classified, s.RowsFound, 100*ratio)
		}
	}
	if res.Unknown > 0 {
		ds.add(LevelInfo, KindUnknownMarks, file, 0, "",
			"%d of %d attributed rows resolved to unknown and are excluded from success rates",
			res.Unknown, res.RowsFound-res.Orphaned)
	}
}

// Candidate is a primitive right of the outcome column start, as seen by
// the classifier.
type Candidate struct {
	Kind     string        `json:"kind"`
	Box      layout.Rect   `json:"box"`
	Text     string        `json:"text,omitempty"`
	Font     string        `json:"font,omitempty"`
	Segments int           `json:"segments,omitempty"`
	Accepted bool          `json:"accepted"`
	Outcome  marks.Outcome `json:"outcome"`
}

// PageInspection exposes the intermediate results for one page.
type PageInspection struct {
	Page       int           `json:"page"`
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	Lines      []layout.Line `json:"lines"`
	Rows       []RowKey      `json:"rows"`
	Column     layout.Column `json:"column"`
	Candidates []Candidate   `json:"candidates"`
	Matches    []RowOutcome  `json:"matches"`
	// Student is the one announced on this page, if any.
	Student string `json:"student,omitempty"`
	// Undecoded counts images whose samples could not be read; they can
	// never classify.
	Undecoded int `json:"undecoded,omitempty"`
}

// InspectPage runs the page pipeline on its own, with no student carried
// in from earlier pages, and returns what each stage saw.
func (a *Analyzer) InspectPage(page layout.Page) PageInspection {
	ps := a.scan(page, nil)
	out := PageInspection{
		Page:   page.Number,
		Width:  page.Width,
		Height: page.Height,
		Lines:  ps.index.Lines(),
		Rows:   ps.rows,
		Column: ps.column,
	}
	tracker := NewTracker(a.fields)
	tracker.ObservePage(out.Lines)
	if state, name := tracker.State(); state == ActiveStudent {
		out.Student = name
	}
	for _, r := range page.Rasters() {
		if r.Image == nil {
			out.Undecoded++
		}
	}
	for _, p := range ps.index.Primitives() {
		b := p.Bounds()
		if b.X0 < ps.column.XMin {
			continue
		}
		c := Candidate{
			Kind:     p.Kind().String(),
			Box:      b,
			Accepted: ps.classifier.Accepts(p),
			Outcome:  ps.classifier.Classify(p),
		}
		switch v := p.(type) {
		case *layout.Glyph:
			c.Text, c.Font = v.Run.Text, v.Run.Font
		case *layout.Vector:
			c.Segments = len(v.Segments)
		case *layout.Raster:
			c.Text = v.Name
		}
		out.Candidates = append(out.Candidates, c)
	}
	for _, m := range ps.matches {
		ro := RowOutcome{Row: m.Row, Outcome: marks.Unknown}
		if m.Mark != nil {
			ro.Outcome = ps.classifier.Classify(m.Mark)
			ro.MarkKind = m.Mark.Kind().String()
			box := m.Mark.Bounds()
			ro.MarkBox = &box
		}
		out.Matches = append(out.Matches, ro)
	}
	return out
}

func (r RowOutcome) String() string {
	who := r.Student
	if who == "" {
		who = "(orphaned)"
	}
	return fmt.Sprintf("p%d %s %s: %s", r.Row.Page, who, r.Row.Key, r.Outcome)
}
