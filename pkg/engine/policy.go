package engine

// successParams are the success-policy inputs extracted from an
// expectation's keyword arguments.
type successParams struct {
	// mostly is the minimum fraction of eligible rows that must satisfy
	// the metric. 1.0 means no tolerance.
	mostly float64

	// bounds are set for scalar/count metrics.
	minValue  *float64
	maxValue  *float64
	strictMin bool
	strictMax bool
}

// mostlySuccess applies the fractional tolerance policy. With no eligible
// rows there is no evidence of violation, so success is vacuously true.
// Exactly meeting the fraction succeeds.
func mostlySuccess(satisfied, eligible int, mostly float64) bool {
	if eligible == 0 {
		return true
	}
	return float64(satisfied)/float64(eligible) >= mostly
}

// boundsSuccess applies a scalar threshold comparison with strict-boundary
// flags. A nil bound is unbounded on that side.
func boundsSuccess(observed float64, p successParams) bool {
	if p.minValue != nil {
		if p.strictMin {
			if !(observed > *p.minValue) {
				return false
			}
		} else if !(observed >= *p.minValue) {
			return false
		}
	}
	if p.maxValue != nil {
		if p.strictMax {
			if !(observed < *p.maxValue) {
				return false
			}
		} else if !(observed <= *p.maxValue) {
			return false
		}
	}
	return true
}
