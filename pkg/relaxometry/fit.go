package relaxometry

import (
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrNoConvergence is returned when the damped least-squares iteration
// exhausts its budget without meeting the convergence tolerance. Callers
// switch to the reduced model on this signal rather than intercepting
// arbitrary failures.
var ErrNoConvergence = errors.New("fit did not converge")

// ErrLengthMismatch is returned when the timing and amplitude sample
// counts differ. This is fatal; no partial result is produced.
var ErrLengthMismatch = errors.New("timing and amplitude counts do not match")

// Options controls the solver.
type Options struct {
	// MaxIterations bounds the iteration count
	MaxIterations int

	// Tolerance is the relative cost-decrease threshold for convergence
	Tolerance float64

	// AlphaMax is the valid range limit for the efficiency factor; a free
	// fit whose alpha estimate leaves [0, AlphaMax] triggers the fallback
	AlphaMax float64
}

// DefaultOptions returns the solver settings used by the CLI.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 200,
		Tolerance:     1e-10,
		AlphaMax:      DefaultAlphaMax,
	}
}

// Result holds one converged fit.
type Result struct {
	// Model is the name of the fitted model
	Model string

	// ParamNames and Params are the parameter names and estimates
	ParamNames []string
	Params     []float64

	// StdErrs are the standard errors from the fit covariance; NaN when
	// the covariance is singular
	StdErrs []float64

	// RSquared is the coefficient of determination of the fit
	RSquared float64

	// SSR is the final sum of squared residuals
	SSR float64

	// Iterations is the number of accepted solver iterations
	Iterations int
}

// Param returns the estimate and standard error for the named parameter.
func (r *Result) Param(name string) (value, stderr float64, ok bool) {
	for i, n := range r.ParamNames {
		if n == name {
			return r.Params[i], r.StdErrs[i], true
		}
	}
	return 0, 0, false
}

// Curve fits the model to the samples by damped least squares
// (Levenberg-Marquardt) with parameters projected onto the model bounds.
// The iteration is fully deterministic: the same samples always produce
// the same estimates.
func Curve(m Model, times, amps []float64, opts Options) (*Result, error) {
	n := len(times)
	if n != len(amps) {
		return nil, fmt.Errorf("%w: %d timing values, %d amplitudes", ErrLengthMismatch, n, len(amps))
	}
	if n == 0 {
		return nil, fmt.Errorf("no samples to fit")
	}

	lower, upper := m.Bounds(times, amps)
	p := clamp(m.Guess(times, amps), lower, upper)
	k := len(p)

	ssr := sumSquaredResiduals(m, times, amps, p)
	lambda := 1e-3
	converged := false
	accepted := 0

	for iter := 0; iter < opts.MaxIterations && !converged; iter++ {
		jac := jacobian(m, times, p, lower, upper)
		res := residualVec(m, times, amps, p)

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)

		grad := mat.NewVecDense(k, nil)
		grad.MulVec(jac.T(), res)

		// Marquardt damping on the normal equations diagonal
		damped := mat.NewDense(k, k, nil)
		damped.Copy(&jtj)
		for i := 0; i < k; i++ {
			d := jtj.At(i, i)
			if d == 0 {
				d = 1
			}
			damped.Set(i, i, jtj.At(i, i)+lambda*d)
		}

		var step mat.VecDense
		if err := step.SolveVec(damped, grad); err != nil {
			lambda *= 10
			if lambda > 1e12 {
				break
			}
			continue
		}

		trial := make([]float64, k)
		for i := 0; i < k; i++ {
			trial[i] = p[i] + step.AtVec(i)
		}
		trial = clamp(trial, lower, upper)

		trialSSR := sumSquaredResiduals(m, times, amps, trial)
		if trialSSR < ssr {
			improvement := (ssr - trialSSR) / (ssr + opts.Tolerance)
			p = trial
			ssr = trialSSR
			accepted++
			lambda = math.Max(lambda/10, 1e-12)
			if improvement < opts.Tolerance {
				converged = true
			}
		} else {
			lambda *= 10
			if lambda > 1e12 {
				// The trust region has collapsed; no further progress is
				// possible from this point
				converged = ssr < opts.Tolerance || accepted > 0 && relativeStepSmall(&step, p)
				break
			}
		}
	}

	if !converged {
		return nil, fmt.Errorf("%w: model %s after %d iterations", ErrNoConvergence, m.Name(), opts.MaxIterations)
	}

	result := &Result{
		Model:      m.Name(),
		ParamNames: m.ParamNames(),
		Params:     p,
		StdErrs:    standardErrors(m, times, amps, p, lower, upper, ssr),
		SSR:        ssr,
		Iterations: accepted,
	}

	pred := make([]float64, n)
	for i, t := range times {
		pred[i] = m.Eval(t, p)
	}
	result.RSquared = stat.RSquaredFrom(pred, amps, nil)

	return result, nil
}

// Outcome bundles the free fit, the alpha=1 comparison fit and whether
// the fallback policy replaced the free fit.
type Outcome struct {
	// Free is the three-parameter fit; nil when the fallback was used
	Free *Result

	// Fixed is the alpha=1 comparison fit, always attempted
	Fixed *Result

	// FallbackUsed reports that the free fit failed or produced an
	// out-of-range efficiency factor
	FallbackUsed bool

	// FallbackReason describes why the fallback was taken
	FallbackReason string
}

// Best returns the fit the caller should report: the free fit when it
// succeeded, otherwise the reduced fit.
func (o *Outcome) Best() *Result {
	if o.Free != nil {
		return o.Free
	}
	return o.Fixed
}

// FitWithFallback runs the free model and, if it fails to converge or
// its efficiency factor leaves [0, AlphaMax], falls back to the reduced
// model. The reduced comparison fit is produced in either case. A length
// mismatch between the sample vectors is fatal.
func FitWithFallback(free, fixed Model, times, amps []float64, opts Options) (*Outcome, error) {
	if len(times) != len(amps) {
		return nil, fmt.Errorf("%w: %d timing values, %d amplitudes",
			ErrLengthMismatch, len(times), len(amps))
	}

	out := &Outcome{}

	freeRes, err := Curve(free, times, amps, opts)
	switch {
	case err != nil:
		out.FallbackUsed = true
		out.FallbackReason = err.Error()
		log.WithField("model", free.Name()).WithError(err).
			Warn("free fit failed, falling back to fixed efficiency factor")
	case free.AlphaIndex() >= 0:
		alpha := freeRes.Params[free.AlphaIndex()]
		if alpha < 0 || alpha > opts.AlphaMax {
			out.FallbackUsed = true
			out.FallbackReason = fmt.Sprintf("efficiency factor %.3f outside [0, %.2f]", alpha, opts.AlphaMax)
			log.WithFields(log.Fields{
				"model": free.Name(),
				"alpha": alpha,
			}).Warn("efficiency factor out of range, falling back")
		} else {
			out.Free = freeRes
		}
	default:
		out.Free = freeRes
	}

	fixedRes, err := Curve(fixed, times, amps, opts)
	if err != nil {
		if out.FallbackUsed {
			return nil, fmt.Errorf("both free and reduced fits failed: %w", err)
		}
		log.WithField("model", fixed.Name()).WithError(err).
			Warn("comparison fit with fixed efficiency factor failed")
	} else {
		out.Fixed = fixedRes
	}

	return out, nil
}

func clamp(p, lower, upper []float64) []float64 {
	out := make([]float64, len(p))
	for i := range p {
		out[i] = math.Min(math.Max(p[i], lower[i]), upper[i])
	}
	return out
}

func sumSquaredResiduals(m Model, times, amps, p []float64) float64 {
	ssr := 0.0
	for i, t := range times {
		d := amps[i] - m.Eval(t, p)
		ssr += d * d
	}
	return ssr
}

func residualVec(m Model, times, amps, p []float64) *mat.VecDense {
	v := mat.NewVecDense(len(times), nil)
	for i, t := range times {
		v.SetVec(i, amps[i]-m.Eval(t, p))
	}
	return v
}

// jacobian computes the forward-difference Jacobian of the model with
// respect to the parameters, stepping inward when a parameter sits on
// its upper bound.
func jacobian(m Model, times, p, lower, upper []float64) *mat.Dense {
	const eps = 1e-8
	n, k := len(times), len(p)
	jac := mat.NewDense(n, k, nil)

	base := make([]float64, n)
	for i, t := range times {
		base[i] = m.Eval(t, p)
	}

	for j := 0; j < k; j++ {
		h := eps * math.Max(math.Abs(p[j]), 1)
		if p[j]+h > upper[j] && p[j]-h >= lower[j] {
			h = -h
		}

		shifted := append([]float64(nil), p...)
		shifted[j] += h
		for i, t := range times {
			jac.Set(i, j, (m.Eval(t, shifted)-base[i])/h)
		}
	}
	return jac
}

// standardErrors derives parameter standard errors from the inverse of
// the Gauss-Newton approximation to the Hessian scaled by the residual
// variance. A singular system yields NaN errors.
func standardErrors(m Model, times, amps, p, lower, upper []float64, ssr float64) []float64 {
	n, k := len(times), len(p)
	errs := make([]float64, k)

	if n <= k {
		for i := range errs {
			errs[i] = math.NaN()
		}
		return errs
	}

	jac := jacobian(m, times, p, lower, upper)
	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)

	var inv mat.Dense
	if err := inv.Inverse(&jtj); err != nil {
		for i := range errs {
			errs[i] = math.NaN()
		}
		return errs
	}

	sigma2 := ssr / float64(n-k)
	for i := 0; i < k; i++ {
		errs[i] = math.Sqrt(math.Abs(inv.At(i, i) * sigma2))
	}
	return errs
}

func relativeStepSmall(step *mat.VecDense, p []float64) bool {
	for i := range p {
		if math.Abs(step.AtVec(i)) > 1e-6*math.Max(math.Abs(p[i]), 1) {
			return false
		}
	}
	return true
}
