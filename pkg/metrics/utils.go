package metrics

import "math"

func optFloat(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func optInt(v *int64) float64 {
	if v == nil {
		return math.NaN()
	}
	return float64(*v)
}

func optBool(v *bool) float64 {
	switch {
	case v == nil:
		return math.NaN()
	case *v:
		return 1
	default:
		return 0
	}
}
