package pdftest

import "math"

// MarkPixels draws a check, cross or circle as an n x n 8-bit gray bitmap,
// black on white, rows top to bottom. The shapes are laid out on a 24
// unit square scaled to n; half is the stroke half-width in those units.
// Any other kind gives a blank bitmap.
func MarkPixels(kind string, n int, half float64) []byte {
	s := float64(n) / 24
	dark := func(x, y float64) bool { return false }
	switch kind {
	case "check":
		dark = func(x, y float64) bool {
			return segDist(x, y, 2, 13, 9, 22) <= half || segDist(x, y, 9, 22, 22, 2) <= half
		}
	case "cross":
		dark = func(x, y float64) bool {
			return segDist(x, y, 2, 2, 22, 22) <= half || segDist(x, y, 2, 22, 22, 2) <= half
		}
	case "circle":
		dark = func(x, y float64) bool {
			return math.Abs(math.Hypot(x-12, y-12)-9.5) <= half
		}
	}

	pix := make([]byte, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			pix[y*n+x] = 255
			if dark((float64(x)+0.5)/s, (float64(y)+0.5)/s) {
				pix[y*n+x] = 0
			}
		}
	}
	return pix
}

func segDist(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	t := ((px-ax)*dx + (py-ay)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}
