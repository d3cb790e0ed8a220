package report

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/a3tai/score-report-reader/internal/layout"
)

// FieldPatterns recognizes the per-student lines of a report.
//
// Announcement patterns capture the student in group "name"; a match
// where group "exclude" participates is ignored (e.g. "School Name:").
// Lexile patterns capture "low" and/or "high" digits. Proficiency
// patterns capture "level".
type FieldPatterns struct {
	Announcement []*regexp.Regexp
	Lexile       []*regexp.Regexp
	Proficiency  []*regexp.Regexp
}

func CompileFieldPatterns(announcement, lexile, proficiency []string) (FieldPatterns, error) {
	var fp FieldPatterns
	var err error
	if len(announcement) == 0 {
		return fp, fmt.Errorf("announcement pattern set is empty")
	}
	if fp.Announcement, err = compileAll("announcement", announcement, "name"); err != nil {
		return fp, err
	}
	if fp.Lexile, err = compileAll("lexile", lexile, ""); err != nil {
		return fp, err
	}
	if fp.Proficiency, err = compileAll("proficiency", proficiency, "level"); err != nil {
		return fp, err
	}
	return fp, nil
}

func compileAll(what string, patterns []string, group string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", what, p, err)
		}
		if group != "" && re.SubexpIndex(group) < 0 {
			return nil, fmt.Errorf("%s pattern %q has no (?P<%s>...) group", what, p, group)
		}
		out = append(out, re)
	}
	return out, nil
}

// SessionState is the tracker's state.
type SessionState int

const (
	NoActiveStudent SessionState = iota
	ActiveStudent
)

func (s SessionState) String() string {
	if s == ActiveStudent {
		return "active"
	}
	return "none"
}

// Segment attributes everything at or below FromY on a page to Student.
type Segment struct {
	Student *StudentRecord
	FromY   float64
}

// StudentAt returns the student owning vertical position y, or nil.
func StudentAt(segs []Segment, y float64) *StudentRecord {
	var s *StudentRecord
	for _, seg := range segs {
		if seg.FromY <= y {
			s = seg.Student
		}
	}
	return s
}

// Tracker follows which student is active across the pages of one
// document. A new announcement always replaces the active student.
type Tracker struct {
	fields   FieldPatterns
	active   *StudentRecord
	students map[string]*StudentRecord
	order    []string
}

func NewTracker(fields FieldPatterns) *Tracker {
	return &Tracker{fields: fields, students: make(map[string]*StudentRecord)}
}

// State reports whether a student is active and which.
func (t *Tracker) State() (SessionState, string) {
	if t.active == nil {
		return NoActiveStudent, ""
	}
	return ActiveStudent, t.active.Name
}

// Students returns the records in order of first announcement.
func (t *Tracker) Students() []*StudentRecord {
	out := make([]*StudentRecord, len(t.order))
	for i, name := range t.order {
		out[i] = t.students[name]
	}
	return out
}

// ObservePage advances the tracker over one page and returns who owns
// which part of it. With one announcement, or none while a student is
// active, a single segment covers the page. Several announcements split
// the page at each announcement line; anything above the first belongs
// to the first. No announcement and no active student yields no segments.
//
// Reading-level and proficiency lines update the owning student; values
// already set are kept.
func (t *Tracker) ObservePage(lines []layout.Line) []Segment {
	var segs []Segment
	for _, l := range lines {
		name, ok := t.announcement(l.Text)
		if !ok {
			continue
		}
		from := l.Box.Y0
		if len(segs) == 0 {
			from = math.Inf(-1)
		}
		segs = append(segs, Segment{Student: t.student(name), FromY: from})
	}
	if len(segs) == 0 {
		if t.active == nil {
			return nil
		}
		segs = []Segment{{Student: t.active, FromY: math.Inf(-1)}}
	}
	t.active = segs[len(segs)-1].Student

	for _, l := range lines {
		s := StudentAt(segs, l.Box.Y0)
		if s == nil {
			continue
		}
		if lex, ok := t.lexile(l.Text); ok {
			s.SetLexile(lex)
		}
		if p, ok := t.proficiency(l.Text); ok {
			s.SetProficiency(p)
		}
	}
	return segs
}

func (t *Tracker) student(name string) *StudentRecord {
	if s, ok := t.students[name]; ok {
		return s
	}
	s := NewStudentRecord(name)
	t.students[name] = s
	t.order = append(t.order, name)
	return s
}

func (t *Tracker) announcement(text string) (string, bool) {
	for _, re := range t.fields.Announcement {
		nameIdx := re.SubexpIndex("name")
		exclude := re.SubexpIndex("exclude")
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if exclude > 0 && m[2*exclude] >= 0 {
				continue
			}
			if m[2*nameIdx] < 0 {
				continue
			}
			name := strings.Join(strings.Fields(text[m[2*nameIdx]:m[2*nameIdx+1]]), " ")
			if name != "" {
				return name, true
			}
		}
	}
	return "", false
}

func (t *Tracker) lexile(text string) (LexileRange, bool) {
	var out LexileRange
	found := false
	for _, re := range t.fields.Lexile {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if i := re.SubexpIndex("low"); i > 0 && out.Lower == nil {
			if v, err := strconv.Atoi(m[i]); err == nil {
				out.Lower = &v
				found = true
			}
		}
		if i := re.SubexpIndex("high"); i > 0 && out.Upper == nil {
			if v, err := strconv.Atoi(m[i]); err == nil {
				out.Upper = &v
				found = true
			}
		}
	}
	return out, found
}

func (t *Tracker) proficiency(text string) (string, bool) {
	for _, re := range t.fields.Proficiency {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if level := strings.Join(strings.Fields(m[re.SubexpIndex("level")]), " "); level != "" {
			return level, true
		}
	}
	return "", false
}
