package report

import (
	"math"
	"sort"

	"github.com/a3tai/score-report-reader/internal/layout"
)

// Match pairs a row with the primitive chosen as its mark. Mark is nil
// when no candidate qualified.
type Match struct {
	Row  RowKey           `json:"row"`
	Mark layout.Primitive `json:"-"`
}

// LocateOptions tunes the mark search.
type LocateOptions struct {
	// Slack widens each row's band by this fraction of the row height.
	Slack float64
	// Accept, when set, drops primitives that cannot be marks before
	// matching.
	Accept func(layout.Primitive) bool
}

type candidate struct {
	row   int
	order int
	prim  layout.Primitive
	dy    float64
	dx    float64
}

// Locate assigns at most one mark to each row and each mark to at most
// one row.
//
// A row's band is [y0-ε, y1+ε] with ε = Slack × row height, where the row
// height is the pitch to the next row (or the previous pitch for the last
// row). A candidate's vertical center must fall in the band and lie
// strictly above the next row's y0. Pairs are then taken greedily by
// vertical distance to the row center, then horizontal distance to the
// column anchor, then row order.
func Locate(rows []RowKey, idx *layout.Index, col layout.Column, opts LocateOptions) []Match {
	out := make([]Match, len(rows))
	var cands []candidate
	for i, row := range rows {
		out[i].Row = row
		eps := opts.Slack * rowHeight(rows, i)
		lo, hi := row.Y0-eps, row.Y1+eps
		next, hasNext := nextRowTop(rows, i)
		center := row.Center()
		tol := math.Max(center-lo, hi-center)
		for order, p := range idx.PrimitivesNear(center, tol, col.XMin) {
			if opts.Accept != nil && !opts.Accept(p) {
				continue
			}
			b := p.Bounds()
			cy := b.CenterY()
			if cy < lo || cy > hi {
				continue
			}
			if hasNext && cy >= next {
				continue
			}
			cands = append(cands, candidate{
				row:   i,
				order: order,
				prim:  p,
				dy:    math.Abs(cy - center),
				dx:    math.Abs(b.CenterX() - col.Anchor),
			})
		}
	}

	sort.SliceStable(cands, func(a, b int) bool {
		ca, cb := cands[a], cands[b]
		if ca.dy != cb.dy {
			return ca.dy < cb.dy
		}
		if ca.dx != cb.dx {
			return ca.dx < cb.dx
		}
		if ca.row != cb.row {
			return ca.row < cb.row
		}
		return ca.order < cb.order
	})

	taken := make(map[layout.Primitive]bool)
	for _, c := range cands {
		if out[c.row].Mark != nil || taken[c.prim] {
			continue
		}
		out[c.row].Mark = c.prim
		taken[c.prim] = true
	}
	return out
}

// nextRowTop returns the y0 of the first following row that starts below
// row i.
func nextRowTop(rows []RowKey, i int) (float64, bool) {
	for j := i + 1; j < len(rows); j++ {
		if rows[j].Y0 > rows[i].Y0 {
			return rows[j].Y0, true
		}
	}
	return 0, false
}

func rowHeight(rows []RowKey, i int) float64 {
	if next, ok := nextRowTop(rows, i); ok {
		return next - rows[i].Y0
	}
	for j := i - 1; j >= 0; j-- {
		if rows[j].Y0 < rows[i].Y0 {
			return rows[i].Y0 - rows[j].Y0
		}
	}
	return 2 * (rows[i].Y1 - rows[i].Y0)
}
