package engine

import (
	"fmt"
	"sort"

	"datakite-hq/kestrel/pkg/metric"
)

// Expectation type identifiers.
const (
	ExpectColumnValuesToBeIncreasing        = "expect_column_values_to_be_increasing"
	ExpectColumnValuesToBeDecreasing        = "expect_column_values_to_be_decreasing"
	ExpectColumnValueZScoresToBeLessThan    = "expect_column_value_z_scores_to_be_less_than"
	ExpectColumnValuesToMatchRegexList      = "expect_column_values_to_match_regex_list"
	ExpectColumnValuesToNotMatchRegexList   = "expect_column_values_to_not_match_regex_list"
	ExpectColumnValuesToBeNull              = "expect_column_values_to_be_null"
	ExpectColumnValuesToNotBeNull           = "expect_column_values_to_not_be_null"
	ExpectColumnPairValuesAToBeGreaterThanB = "expect_column_pair_values_a_to_be_greater_than_b"
	ExpectColumnMeanToBeBetween             = "expect_column_mean_to_be_between"
	ExpectTableRowCountToBeBetween          = "expect_table_row_count_to_be_between"
)

// buildResult is the outcome of translating expectation kwargs into a
// metric request plus success-policy parameters.
type buildResult struct {
	columns   []string
	args      map[string]any
	rowPolicy metric.RowPolicy // empty means the metric's default
	policy    successParams
}

// expectationSpec binds an expectation type to its metric and kwarg
// translation.
type expectationSpec struct {
	metricID string
	build    func(kw kwargs) (*buildResult, error)
}

// expectations is the expectation table: type identifier → spec.
var expectations = map[string]*expectationSpec{
	ExpectColumnValuesToBeIncreasing: {
		metricID: metric.ColumnValuesIncreasing,
		build:    buildMonotonic,
	},
	ExpectColumnValuesToBeDecreasing: {
		metricID: metric.ColumnValuesDecreasing,
		build:    buildMonotonic,
	},
	ExpectColumnValueZScoresToBeLessThan: {
		metricID: metric.ColumnValuesZScoreUnder,
		build: func(kw kwargs) (*buildResult, error) {
			if err := kw.allow("column", "threshold", "double_sided", "mostly"); err != nil {
				return nil, err
			}
			col, err := kw.column("column")
			if err != nil {
				return nil, err
			}
			threshold, ok, err := kw.number("threshold")
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("missing required kwarg %q", "threshold")
			}
			doubleSided, err := kw.boolean("double_sided", false)
			if err != nil {
				return nil, err
			}
			mostly, err := kw.mostly()
			if err != nil {
				return nil, err
			}
			return &buildResult{
				columns: []string{col},
				args:    map[string]any{"threshold": threshold, "double_sided": doubleSided},
				policy:  successParams{mostly: mostly},
			}, nil
		},
	},
	ExpectColumnValuesToMatchRegexList: {
		metricID: metric.ColumnValuesMatchRegexList,
		build: func(kw kwargs) (*buildResult, error) {
			if err := kw.allow("column", "regex_list", "match_on", "mostly"); err != nil {
				return nil, err
			}
			col, err := kw.column("column")
			if err != nil {
				return nil, err
			}
			list, err := kw.stringList("regex_list")
			if err != nil {
				return nil, err
			}
			args := map[string]any{"regex_list": list}
			if matchOn, ok, err := kw.str("match_on"); err != nil {
				return nil, err
			} else if ok {
				args["match_on"] = matchOn
			}
			mostly, err := kw.mostly()
			if err != nil {
				return nil, err
			}
			return &buildResult{
				columns: []string{col},
				args:    args,
				policy:  successParams{mostly: mostly},
			}, nil
		},
	},
	ExpectColumnValuesToNotMatchRegexList: {
		metricID: metric.ColumnValuesNotMatchRegexList,
		build: func(kw kwargs) (*buildResult, error) {
			if err := kw.allow("column", "regex_list", "mostly"); err != nil {
				return nil, err
			}
			col, err := kw.column("column")
			if err != nil {
				return nil, err
			}
			list, err := kw.stringList("regex_list")
			if err != nil {
				return nil, err
			}
			mostly, err := kw.mostly()
			if err != nil {
				return nil, err
			}
			return &buildResult{
				columns: []string{col},
				args:    map[string]any{"regex_list": list},
				policy:  successParams{mostly: mostly},
			}, nil
		},
	},
	ExpectColumnValuesToBeNull: {
		metricID: metric.ColumnValuesNull,
		build:    buildColumnOnly,
	},
	ExpectColumnValuesToNotBeNull: {
		metricID: metric.ColumnValuesNotNull,
		build:    buildColumnOnly,
	},
	ExpectColumnPairValuesAToBeGreaterThanB: {
		metricID: metric.ColumnPairAGreaterThanB,
		build: func(kw kwargs) (*buildResult, error) {
			if err := kw.allow("column_A", "column_B", "or_equal",
				"parse_strings_as_datetimes", "ignore_row_if", "mostly"); err != nil {
				return nil, err
			}
			colA, err := kw.column("column_A")
			if err != nil {
				return nil, err
			}
			colB, err := kw.column("column_B")
			if err != nil {
				return nil, err
			}
			orEqual, err := kw.boolean("or_equal", false)
			if err != nil {
				return nil, err
			}
			parseDatetimes, err := kw.boolean("parse_strings_as_datetimes", false)
			if err != nil {
				return nil, err
			}
			mostly, err := kw.mostly()
			if err != nil {
				return nil, err
			}

			res := &buildResult{
				columns: []string{colA, colB},
				args: map[string]any{
					"or_equal":                   orEqual,
					"parse_strings_as_datetimes": parseDatetimes,
				},
				policy: successParams{mostly: mostly},
			}
			if raw, ok, err := kw.str("ignore_row_if"); err != nil {
				return nil, err
			} else if ok {
				policy, err := metric.ParseRowPolicy(raw)
				if err != nil {
					return nil, err
				}
				res.rowPolicy = policy
			}
			return res, nil
		},
	},
	ExpectColumnMeanToBeBetween: {
		metricID: metric.ColumnMean,
		build: func(kw kwargs) (*buildResult, error) {
			if err := kw.allow("column", "min_value", "max_value", "strict_min", "strict_max"); err != nil {
				return nil, err
			}
			col, err := kw.column("column")
			if err != nil {
				return nil, err
			}
			policy, err := kw.bounds()
			if err != nil {
				return nil, err
			}
			return &buildResult{columns: []string{col}, policy: policy}, nil
		},
	},
	ExpectTableRowCountToBeBetween: {
		metricID: metric.TableRowCount,
		build: func(kw kwargs) (*buildResult, error) {
			if err := kw.allow("min_value", "max_value", "strict_min", "strict_max"); err != nil {
				return nil, err
			}
			policy, err := kw.bounds()
			if err != nil {
				return nil, err
			}
			return &buildResult{policy: policy}, nil
		},
	},
}

// buildMonotonic translates kwargs shared by the monotonicity expectations.
func buildMonotonic(kw kwargs) (*buildResult, error) {
	if err := kw.allow("column", "strictly", "mostly"); err != nil {
		return nil, err
	}
	col, err := kw.column("column")
	if err != nil {
		return nil, err
	}
	strictly, err := kw.boolean("strictly", false)
	if err != nil {
		return nil, err
	}
	mostly, err := kw.mostly()
	if err != nil {
		return nil, err
	}
	return &buildResult{
		columns: []string{col},
		args:    map[string]any{"strictly": strictly},
		policy:  successParams{mostly: mostly},
	}, nil
}

// buildColumnOnly translates kwargs for expectations with only a target
// column and mostly.
func buildColumnOnly(kw kwargs) (*buildResult, error) {
	if err := kw.allow("column", "mostly"); err != nil {
		return nil, err
	}
	col, err := kw.column("column")
	if err != nil {
		return nil, err
	}
	mostly, err := kw.mostly()
	if err != nil {
		return nil, err
	}
	return &buildResult{
		columns: []string{col},
		policy:  successParams{mostly: mostly},
	}, nil
}

// KnownExpectation reports whether the expectation type is registered.
func KnownExpectation(expectationType string) bool {
	_, ok := expectations[expectationType]
	return ok
}

// ExpectationTypes returns all registered expectation types, sorted.
func ExpectationTypes() []string {
	types := make([]string, 0, len(expectations))
	for t := range expectations {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ValidateRequest statically checks an expectation request without a
// dataset: type lookup, kwarg translation, and metric argument validation.
// Column existence is a dataset-bound check and is not covered.
func ValidateRequest(req ExpectationRequest) error {
	spec, ok := expectations[req.Type]
	if !ok {
		return &ConfigurationError{
			ExpectationType: req.Type,
			Message:         "unrecognized type",
			Cause:           ErrUnknownExpectation,
		}
	}
	built, err := spec.build(kwargs(req.Kwargs))
	if err != nil {
		return &ConfigurationError{
			ExpectationType: req.Type,
			Message:         "invalid kwargs",
			Cause:           err,
		}
	}
	if _, err := metric.NewRequest(spec.metricID, built.columns, built.args); err != nil {
		return &ConfigurationError{
			ExpectationType: req.Type,
			Message:         "invalid metric request",
			Cause:           err,
		}
	}
	return nil
}

// kwargs wraps the keyword arguments of one expectation with typed access.
type kwargs map[string]any

// allow rejects kwargs outside the accepted set.
func (k kwargs) allow(names ...string) error {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	for name := range k {
		if !allowed[name] {
			return fmt.Errorf("unknown kwarg %q", name)
		}
	}
	return nil
}

// column returns a required column-name kwarg.
func (k kwargs) column(name string) (string, error) {
	raw, ok := k[name]
	if !ok {
		return "", fmt.Errorf("missing required kwarg %q", name)
	}
	col, ok := raw.(string)
	if !ok || col == "" {
		return "", fmt.Errorf("kwarg %q must be a non-empty column name", name)
	}
	return col, nil
}

// boolean returns an optional bool kwarg.
func (k kwargs) boolean(name string, def bool) (bool, error) {
	raw, ok := k[name]
	if !ok || raw == nil {
		return def, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("kwarg %q must be a bool, got %T", name, raw)
	}
	return b, nil
}

// str returns an optional string kwarg.
func (k kwargs) str(name string) (string, bool, error) {
	raw, ok := k[name]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("kwarg %q must be a string, got %T", name, raw)
	}
	return s, true, nil
}

// number returns an optional numeric kwarg.
func (k kwargs) number(name string) (float64, bool, error) {
	raw, ok := k[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch n := raw.(type) {
	case float64:
		return n, true, nil
	case float32:
		return float64(n), true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	default:
		return 0, false, fmt.Errorf("kwarg %q must be a number, got %T", name, raw)
	}
}

// stringList returns a required string-list kwarg.
func (k kwargs) stringList(name string) ([]string, error) {
	raw, ok := k[name]
	if !ok {
		return nil, fmt.Errorf("missing required kwarg %q", name)
	}
	switch l := raw.(type) {
	case []string:
		return l, nil
	case []any:
		list := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("kwarg %q must be a list of strings", name)
			}
			list = append(list, s)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("kwarg %q must be a list of strings, got %T", name, raw)
	}
}

// mostly returns the fractional tolerance, defaulting to 1.0 (no
// tolerance), and rejects values outside [0, 1].
func (k kwargs) mostly() (float64, error) {
	m, ok, err := k.number("mostly")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1.0, nil
	}
	if m < 0 || m > 1 {
		return 0, fmt.Errorf("kwarg \"mostly\" must be between 0 and 1, got %v", m)
	}
	return m, nil
}

// bounds extracts min/max threshold kwargs with strict-boundary flags.
// At least one bound is required.
func (k kwargs) bounds() (successParams, error) {
	var p successParams
	p.mostly = 1.0

	if min, ok, err := k.number("min_value"); err != nil {
		return p, err
	} else if ok {
		p.minValue = &min
	}
	if max, ok, err := k.number("max_value"); err != nil {
		return p, err
	} else if ok {
		p.maxValue = &max
	}
	if p.minValue == nil && p.maxValue == nil {
		return p, fmt.Errorf("at least one of min_value and max_value is required")
	}
	if p.minValue != nil && p.maxValue != nil && *p.minValue > *p.maxValue {
		return p, fmt.Errorf("min_value %v exceeds max_value %v", *p.minValue, *p.maxValue)
	}

	var err error
	if p.strictMin, err = k.boolean("strict_min", false); err != nil {
		return p, err
	}
	if p.strictMax, err = k.boolean("strict_max", false); err != nil {
		return p, err
	}
	return p, nil
}
