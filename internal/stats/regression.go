package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Line is an ordinary least-squares fit of value = Intercept + Slope*index.
type Line struct {
	Slope     float64
	Intercept float64
}

// At evaluates the line at index x.
func (l Line) At(x float64) float64 {
	return l.Intercept + l.Slope*x
}

// FitLine fits y against the index sequence 0..n-1.
func FitLine(y []float64) (Line, error) {
	if len(y) < 2 {
		return Line{}, ErrInsufficientData
	}
	x := make([]float64, len(y))
	for i := range x {
		x[i] = float64(i)
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(slope) || math.IsNaN(intercept) {
		return Line{}, ErrNonFinite
	}
	return Line{Slope: slope, Intercept: intercept}, nil
}
