package mapest

import (
	"fmt"
	"math"
	"strings"
)

// MapFunction converts between recombination fractions and map distances
// in centiMorgans.
type MapFunction string

const (
	Haldane MapFunction = "haldane"
	Kosambi MapFunction = "kosambi"
	Morgan  MapFunction = "morgan"
)

// ParseMapFunction accepts the function name in any case.
func ParseMapFunction(s string) (MapFunction, error) {
	switch f := MapFunction(strings.ToLower(strings.TrimSpace(s))); f {
	case Haldane, Kosambi, Morgan:
		return f, nil
	case "":
		return Haldane, nil
	}
	return "", fmt.Errorf("unknown map function %q", s)
}

// ToCM returns the map distance for recombination fraction r. r >= 0.5 is
// unlinked and maps to +Inf except under Morgan.
func (f MapFunction) ToCM(r float64) float64 {
	switch f {
	case Kosambi:
		return 25 * math.Log((1+2*r)/(1-2*r))
	case Morgan:
		return 100 * r
	default:
		return -50 * math.Log(1-2*r)
	}
}

// ToRecFrac is the inverse of ToCM.
func (f MapFunction) ToRecFrac(cM float64) float64 {
	switch f {
	case Kosambi:
		return 0.5 * math.Tanh(cM/50)
	case Morgan:
		return math.Min(cM/100, 0.5)
	default:
		return 0.5 * (1 - math.Exp(-cM/50))
	}
}

// Positions turns per-interval recombination fractions into cumulative
// marker positions, starting at 0.
func Positions(recFrac []float64, f MapFunction) []float64 {
	pos := make([]float64, len(recFrac)+1)
	for i, r := range recFrac {
		pos[i+1] = pos[i] + f.ToCM(r)
	}
	return pos
}

// RecFracs is the inverse of Positions. Positions must be non-decreasing.
func RecFracs(pos []float64, f MapFunction) ([]float64, error) {
	if len(pos) < 2 {
		return nil, ErrNoIntervals
	}
	out := make([]float64, len(pos)-1)
	for i := range out {
		d := pos[i+1] - pos[i]
		if d < 0 {
			return nil, fmt.Errorf("marker positions decrease at %d: %g < %g", i+2, pos[i+1], pos[i])
		}
		out[i] = f.ToRecFrac(d)
	}
	return out, nil
}
