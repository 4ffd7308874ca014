package engine

import (
	"datakite-hq/kestrel/pkg/backend"
	"datakite-hq/kestrel/pkg/metric"
)

// assembleSeries walks a per-row outcome and collects, in ascending
// original-row order, every eligible row whose outcome is a violation.
func assembleSeries(out *metric.Outcome, p successParams) (bool, ResultDetail) {
	detail := ResultDetail{
		ElementCount:        out.EligibleCount(),
		UnexpectedList:      []any{},
		UnexpectedIndexList: []int{},
	}

	for i, ok := range out.Series {
		if ok {
			continue
		}
		detail.UnexpectedIndexList = append(detail.UnexpectedIndexList, out.Indexes[i])
		if out.Pairs != nil {
			detail.UnexpectedList = append(detail.UnexpectedList, pairNative(out.Pairs[i]))
		} else {
			detail.UnexpectedList = append(detail.UnexpectedList, out.Values[i].Native())
		}
	}

	detail.UnexpectedCount = len(detail.UnexpectedIndexList)
	if detail.ElementCount > 0 {
		detail.UnexpectedPercent = 100 * float64(detail.UnexpectedCount) / float64(detail.ElementCount)
	}

	success := mostlySuccess(out.SatisfiedCount(), out.EligibleCount(), p.mostly)
	return success, detail
}

// pairNative renders a compared value pair for the unexpected list.
// Numeric members are normalized to floating point, since the pair
// comparison coerces ints and floats to a common numeric type.
func pairNative(pair [2]backend.Value) []any {
	rendered := make([]any, 2)
	for i, v := range pair {
		if v.IsNumeric() {
			f, _ := v.Float64()
			rendered[i] = f
		} else {
			rendered[i] = v.Native()
		}
	}
	return rendered
}

// assembleScalar packages a scalar outcome: the observed value plus a
// direct bounds comparison. A null scalar (no eligible rows) carries no
// evidence of violation and succeeds vacuously.
func assembleScalar(out *metric.Outcome, p successParams) (bool, ResultDetail, error) {
	detail := ResultDetail{
		UnexpectedList:      []any{},
		UnexpectedIndexList: []int{},
	}

	if out.Scalar.IsNull() {
		return true, detail, nil
	}

	observed, err := out.Scalar.Float64()
	if err != nil {
		return false, detail, err
	}
	detail.ObservedValue = observed
	return boundsSuccess(observed, p), detail, nil
}

// assembleCount packages a count outcome.
func assembleCount(out *metric.Outcome, p successParams) (bool, ResultDetail) {
	detail := ResultDetail{
		UnexpectedList:      []any{},
		UnexpectedIndexList: []int{},
		ObservedValue:       out.Count,
	}
	return boundsSuccess(float64(out.Count), p), detail
}
