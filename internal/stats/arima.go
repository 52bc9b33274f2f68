package stats

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Order is an ARIMA(p, d, q) specification.
type Order struct {
	P int
	D int
	Q int
}

func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// ARIMAFit holds coefficients estimated on the d-times differenced series
// (no constant term) plus the state needed to forecast.
type ARIMAFit struct {
	Order  Order
	AR     []float64
	MA     []float64
	Sigma2 float64

	levels [][]float64
	resid  []float64
}

// FitARIMA estimates an ARIMA model with the two-stage Hannan-Rissanen
// least-squares procedure: a long autoregression supplies innovation
// estimates, then the differenced series is regressed on its own lags and
// the lagged innovations.
func FitARIMA(x []float64, order Order) (*ARIMAFit, error) {
	if order.P < 0 || order.D < 0 || order.Q < 0 {
		return nil, fmt.Errorf("invalid order %s", order)
	}
	if !allFinite(x) {
		return nil, ErrNonFinite
	}

	levels := make([][]float64, 0, order.D+1)
	levels = append(levels, append([]float64(nil), x...))
	for k := 0; k < order.D; k++ {
		levels = append(levels, difference(levels[k]))
	}
	w := levels[order.D]
	m := len(w)

	innovations := make([]float64, m)
	start := order.P
	if order.Q > 0 {
		longOrder := order.P + order.Q + 1
		if m-longOrder < longOrder+1 {
			return nil, fmt.Errorf("%s long autoregression: %w", order, ErrInsufficientData)
		}
		longAR, err := leastSquaresLags(w, longOrder, nil, 0, longOrder)
		if err != nil {
			return nil, err
		}
		for t := longOrder; t < m; t++ {
			innovations[t] = w[t] - dotLags(w, t, longAR)
		}
		start = max(order.P, longOrder+order.Q)
	}

	cols := order.P + order.Q
	if cols == 0 {
		return nil, fmt.Errorf("%s has no parameters", order)
	}
	if m-start < cols+1 {
		return nil, fmt.Errorf("%s: %w", order, ErrInsufficientData)
	}

	coef, err := leastSquaresLags(w, order.P, innovations, order.Q, start)
	if err != nil {
		return nil, err
	}
	ar := coef[:order.P]
	ma := coef[order.P:]
	if !allFinite(coef) {
		return nil, ErrNonFinite
	}

	resid := make([]float64, m)
	copy(resid, innovations)
	var sse float64
	for t := start; t < m; t++ {
		fitted := dotLags(w, t, ar) + dotLags(resid, t, ma)
		resid[t] = w[t] - fitted
		sse += resid[t] * resid[t]
	}

	return &ARIMAFit{
		Order:  order,
		AR:     ar,
		MA:     ma,
		Sigma2: sse / float64(m-start),
		levels: levels,
		resid:  resid,
	}, nil
}

// Forecast extends the original (undifferenced) series by steps values.
// Future innovations are taken as zero.
func (f *ARIMAFit) Forecast(steps int) ([]float64, error) {
	if steps <= 0 {
		return []float64{}, nil
	}

	w := append([]float64(nil), f.levels[f.Order.D]...)
	e := append([]float64(nil), f.resid...)
	for h := 0; h < steps; h++ {
		t := len(w)
		next := dotLags(w, t, f.AR) + dotLags(e, t, f.MA)
		w = append(w, next)
		e = append(e, 0)
	}
	out := w[len(w)-steps:]

	// Integrate back one level at a time.
	for k := f.Order.D - 1; k >= 0; k-- {
		base := f.levels[k]
		last := base[len(base)-1]
		integrated := make([]float64, steps)
		for i, dv := range out {
			last += dv
			integrated[i] = last
		}
		out = integrated
	}

	if !allFinite(out) {
		return nil, ErrNonFinite
	}
	return out, nil
}

// leastSquaresLags regresses w[t] for t in [start, len(w)) on w[t-1..t-p]
// and extra[t-1..t-q].
func leastSquaresLags(w []float64, p int, extra []float64, q int, start int) ([]float64, error) {
	rows := len(w) - start
	cols := p + q
	design := mat.NewDense(rows, cols, nil)
	target := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := start + r
		for i := 1; i <= p; i++ {
			design.Set(r, i-1, w[t-i])
		}
		for j := 1; j <= q; j++ {
			design.Set(r, p+j-1, extra[t-j])
		}
		target.SetVec(r, w[t])
	}

	var beta mat.VecDense
	if err := beta.SolveVec(design, target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularFit, err)
	}

	coef := make([]float64, cols)
	for i := range coef {
		coef[i] = beta.AtVec(i)
	}
	return coef, nil
}

// dotLags returns sum_i coef[i] * series[t-1-i], treating indices before the
// start of the series as zero.
func dotLags(series []float64, t int, coef []float64) float64 {
	var acc float64
	for i, c := range coef {
		idx := t - 1 - i
		if idx < 0 {
			break
		}
		acc += c * series[idx]
	}
	return acc
}

func difference(x []float64) []float64 {
	if len(x) < 2 {
		return []float64{}
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}
