package core

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// gaussian is a*exp(-(x-mean)²/(2σ²)).
type gaussian struct {
	Amp   float64
	Mean  float64
	Sigma float64
}

func (g gaussian) at(x float64) float64 {
	if g.Sigma == 0 {
		return 0
	}
	d := (x - g.Mean) / g.Sigma
	return g.Amp * math.Exp(-d*d/2)
}

// fitGaussian least-squares fits a Gaussian to (x, y). The weighted moments
// of x under y seed a Nelder-Mead search run on normalized axes; they are
// also the answer when the search fails or there are too few points.
func fitGaussian(x, y []float64) gaussian {
	if len(x) == 0 || len(x) != len(y) {
		return gaussian{}
	}
	peak := floats.Max(y)
	if peak <= 0 || floats.Sum(y) <= 0 {
		return gaussian{}
	}
	mean := stat.Mean(x, y)
	sigma := math.Sqrt(stat.MomentAbout(2, x, mean, y))
	seed := gaussian{Amp: peak, Mean: mean, Sigma: sigma}
	if len(x) < 3 || sigma == 0 || math.IsNaN(sigma) {
		return seed
	}

	xs := make([]float64, len(x))
	ys := make([]float64, len(y))
	for i := range x {
		xs[i] = (x[i] - mean) / sigma
		ys[i] = y[i] / peak
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			g := gaussian{Amp: p[0], Mean: p[1], Sigma: math.Exp(p[2])}
			var sum float64
			for i := range xs {
				r := g.at(xs[i]) - ys[i]
				sum += r * r
			}
			return sum
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: 4000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-10,
			Iterations: 100,
		},
	}
	res, err := optimize.Minimize(problem, []float64{1, 0, 0}, settings, &optimize.NelderMead{})
	if res == nil || (err != nil && res.X == nil) {
		return seed
	}
	p := res.X
	fitted := gaussian{
		Amp:   p[0] * peak,
		Mean:  mean + p[1]*sigma,
		Sigma: math.Exp(p[2]) * sigma,
	}
	if !finite(fitted.Amp) || !finite(fitted.Mean) || !finite(fitted.Sigma) || fitted.Sigma == 0 {
		return seed
	}
	return fitted
}

// standardizedMoments returns the skewness and excess kurtosis of y over x
// about the given mean and standard deviation.
func standardizedMoments(x, y []float64, mean, sigma float64) (skew, kurt float64) {
	if sigma == 0 || len(x) == 0 || floats.Sum(y) <= 0 {
		return 0, 0
	}
	skew = stat.MomentAbout(3, x, mean, y) / math.Pow(sigma, 3)
	kurt = stat.MomentAbout(4, x, mean, y)/math.Pow(sigma, 4) - 3
	return skew, kurt
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
