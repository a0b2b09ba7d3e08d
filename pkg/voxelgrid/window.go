package voxelgrid

import (
	"math"

	log "github.com/sirupsen/logrus"
)

// Window is the [Min, Max] intensity range rendered in color. Values
// outside the window are masked, never clipped.
type Window struct {
	Min, Max float64
}

// RoundUpNice rounds x away from zero to one significant digit:
// 123 -> 200, 78 -> 80, 0.023 -> 0.03.
func RoundUpNice(x float64) float64 {
	if x == 0 {
		return 0
	}
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	ax := math.Abs(x)
	mag := math.Pow(10, math.Floor(math.Log10(ax)))
	return sign * math.Ceil(ax/mag) * mag
}

// RoundDownNice rounds x toward zero to one significant digit:
// 123 -> 100, 78 -> 70, 0.023 -> 0.02.
func RoundDownNice(x float64) float64 {
	if x == 0 {
		return 0
	}
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	ax := math.Abs(x)
	mag := math.Pow(10, math.Floor(math.Log10(ax)))
	return sign * math.Floor(ax/mag) * mag
}

// Adjust reconciles a requested window with the actual data extent.
// A max beyond the data is pulled in to the nice bound rounded outward
// from the data maximum; a min below the data is pulled up to the nice
// bound below the data minimum. Each bound is adjusted independently and
// guarded so it never crosses the data extent; if the result leaves
// Min > Max the two are swapped with a warning.
func (w Window) Adjust(dataMin, dataMax float64, hasData bool) Window {
	out := w

	if hasData && out.Max > dataMax {
		nice := RoundUpNice(dataMax)
		if nice < dataMax {
			nice = dataMax
		}
		log.WithFields(log.Fields{
			"requested": out.Max,
			"dataMax":   dataMax,
			"adjusted":  nice,
		}).Info("adjusting window max")
		out.Max = nice
	}

	if hasData && out.Min < dataMin {
		nice := RoundDownNice(dataMin)
		if nice > dataMin {
			nice = dataMin
		}
		log.WithFields(log.Fields{
			"requested": out.Min,
			"dataMin":   dataMin,
			"adjusted":  nice,
		}).Info("adjusting window min")
		out.Min = nice
	}

	if out.Min > out.Max {
		log.WithFields(log.Fields{
			"min": out.Min,
			"max": out.Max,
		}).Warn("window min exceeds max after adjustment, swapping")
		out.Min, out.Max = out.Max, out.Min
	}

	return out
}
