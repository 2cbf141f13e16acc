package chooser

import (
	"fmt"
	"sort"
	"time"
)

// CurvePoint is one knot of a piecewise-linear curve.
type CurvePoint struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// ScoreCurve maps elapsed seconds to a value by linear interpolation between
// knots, clamping outside the first and last knot.
type ScoreCurve struct {
	points []CurvePoint
}

// NewScoreCurve validates and sorts the knots. X values must be distinct.
func NewScoreCurve(points []CurvePoint) (ScoreCurve, error) {
	if len(points) == 0 {
		return ScoreCurve{}, nil
	}
	sorted := append([]CurvePoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].X == sorted[i-1].X {
			return ScoreCurve{}, fmt.Errorf("chooser: score curve has duplicate x %.3f", sorted[i].X)
		}
	}
	return ScoreCurve{points: sorted}, nil
}

// Empty reports whether the curve has no knots.
func (c ScoreCurve) Empty() bool { return len(c.points) == 0 }

// Evaluate returns the curve value at x.
func (c ScoreCurve) Evaluate(x float64) float64 {
	switch len(c.points) {
	case 0:
		return 0
	case 1:
		return c.points[0].Y
	}
	if x <= c.points[0].X {
		return c.points[0].Y
	}
	last := c.points[len(c.points)-1]
	if x >= last.X {
		return last.Y
	}
	i := sort.Search(len(c.points), func(i int) bool { return c.points[i].X >= x })
	lo, hi := c.points[i-1], c.points[i]
	t := (x - lo.X) / (hi.X - lo.X)
	return lo.Y + t*(hi.Y-lo.Y)
}

// At evaluates the curve for a running duration.
func (c ScoreCurve) At(d time.Duration) float64 {
	return c.Evaluate(d.Seconds())
}
