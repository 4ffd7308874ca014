package metric

import (
	"fmt"
	"regexp"
	"sort"
)

// Domain identifies the slice of the dataset a metric computes over.
type Domain int

const (
	// DomainColumn metrics compute over a single column.
	DomainColumn Domain = iota
	// DomainColumnPair metrics compute over two columns row by row.
	DomainColumnPair
	// DomainTable metrics compute over the whole table.
	DomainTable
)

// String returns the domain name.
func (d Domain) String() string {
	switch d {
	case DomainColumn:
		return "column"
	case DomainColumnPair:
		return "column_pair"
	case DomainTable:
		return "table"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

// Shape identifies the return shape of a metric.
type Shape int

const (
	// ShapeSeries is a per-row boolean outcome over the eligible rows.
	ShapeSeries Shape = iota
	// ShapeScalar is a single scalar value (e.g. a column mean).
	ShapeScalar
	// ShapeCount is a single non-negative count (e.g. table row count).
	ShapeCount
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeSeries:
		return "series"
	case ShapeScalar:
		return "scalar"
	case ShapeCount:
		return "count"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// ArgKind identifies the expected type of a metric argument.
type ArgKind int

const (
	ArgBool ArgKind = iota
	ArgNumber
	ArgString
	ArgStringList
)

// ArgSpec describes one argument accepted by a metric.
type ArgSpec struct {
	Name     string
	Kind     ArgKind
	Required bool
	// Default is applied when the argument is absent and not required.
	Default any
	// OneOf restricts string arguments to an enumerated set.
	OneOf []string
	// Regexps marks a string list whose entries must compile as regular
	// expressions.
	Regexps bool
}

// Definition is the registry entry for one metric identifier.
type Definition struct {
	// ID is the metric identifier, e.g. "column_values.increasing".
	ID string

	// Domain is the dataset slice the metric computes over.
	Domain Domain

	// Shape is the return shape adapters must produce.
	Shape Shape

	// Args is the accepted argument schema.
	Args []ArgSpec

	// RowPolicy is the default missing-value policy. Metrics that define
	// their own missing-value semantics (the null checks) use IgnoreNever
	// so that every row stays eligible.
	RowPolicy RowPolicy
}

// Metric identifiers for the built-in metric families.
const (
	ColumnValuesIncreasing        = "column_values.increasing"
	ColumnValuesDecreasing        = "column_values.decreasing"
	ColumnValuesZScoreUnder       = "column_values.z_score.under_threshold"
	ColumnValuesMatchRegexList    = "column_values.match_regex_list"
	ColumnValuesNotMatchRegexList = "column_values.not_match_regex_list"
	ColumnValuesNull              = "column_values.null"
	ColumnValuesNotNull           = "column_values.not_null"
	ColumnPairAGreaterThanB       = "column_pair_values.a_greater_than_b"
	ColumnMean                    = "column.mean"
	TableRowCount                 = "table.row_count"
)

// builtin holds the registered metric definitions, keyed by identifier.
var builtin = map[string]*Definition{}

func register(def *Definition) {
	if _, dup := builtin[def.ID]; dup {
		panic(fmt.Sprintf("metric %q registered twice", def.ID))
	}
	builtin[def.ID] = def
}

func init() {
	register(&Definition{
		ID:     ColumnValuesIncreasing,
		Domain: DomainColumn,
		Shape:  ShapeSeries,
		Args: []ArgSpec{
			{Name: "strictly", Kind: ArgBool, Default: false},
		},
		RowPolicy: IgnoreIfMissing,
	})
	register(&Definition{
		ID:     ColumnValuesDecreasing,
		Domain: DomainColumn,
		Shape:  ShapeSeries,
		Args: []ArgSpec{
			{Name: "strictly", Kind: ArgBool, Default: false},
		},
		RowPolicy: IgnoreIfMissing,
	})
	register(&Definition{
		ID:     ColumnValuesZScoreUnder,
		Domain: DomainColumn,
		Shape:  ShapeSeries,
		Args: []ArgSpec{
			{Name: "threshold", Kind: ArgNumber, Required: true},
			{Name: "double_sided", Kind: ArgBool, Default: false},
		},
		RowPolicy: IgnoreIfMissing,
	})
	register(&Definition{
		ID:     ColumnValuesMatchRegexList,
		Domain: DomainColumn,
		Shape:  ShapeSeries,
		Args: []ArgSpec{
			{Name: "regex_list", Kind: ArgStringList, Required: true, Regexps: true},
			{Name: "match_on", Kind: ArgString, Default: "any", OneOf: []string{"any", "all"}},
		},
		RowPolicy: IgnoreIfMissing,
	})
	register(&Definition{
		ID:     ColumnValuesNotMatchRegexList,
		Domain: DomainColumn,
		Shape:  ShapeSeries,
		Args: []ArgSpec{
			{Name: "regex_list", Kind: ArgStringList, Required: true, Regexps: true},
		},
		RowPolicy: IgnoreIfMissing,
	})
	register(&Definition{
		ID:        ColumnValuesNull,
		Domain:    DomainColumn,
		Shape:     ShapeSeries,
		RowPolicy: IgnoreNever,
	})
	register(&Definition{
		ID:        ColumnValuesNotNull,
		Domain:    DomainColumn,
		Shape:     ShapeSeries,
		RowPolicy: IgnoreNever,
	})
	register(&Definition{
		ID:     ColumnPairAGreaterThanB,
		Domain: DomainColumnPair,
		Shape:  ShapeSeries,
		Args: []ArgSpec{
			{Name: "or_equal", Kind: ArgBool, Default: false},
			{Name: "parse_strings_as_datetimes", Kind: ArgBool, Default: false},
		},
		RowPolicy: IgnoreBothMissing,
	})
	register(&Definition{
		ID:        ColumnMean,
		Domain:    DomainColumn,
		Shape:     ShapeScalar,
		RowPolicy: IgnoreIfMissing,
	})
	register(&Definition{
		ID:        TableRowCount,
		Domain:    DomainTable,
		Shape:     ShapeCount,
		RowPolicy: IgnoreNever,
	})
}

// Lookup returns the definition for a metric identifier.
func Lookup(id string) (*Definition, error) {
	def, ok := builtin[id]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", id)
	}
	return def, nil
}

// IDs returns all registered metric identifiers, sorted.
func IDs() []string {
	ids := make([]string, 0, len(builtin))
	for id := range builtin {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidateArgs checks args against the definition's schema and returns a
// normalized copy with defaults applied. Unknown arguments, missing
// required arguments, and type mismatches are errors.
func (d *Definition) ValidateArgs(args map[string]any) (map[string]any, error) {
	known := make(map[string]*ArgSpec, len(d.Args))
	for i := range d.Args {
		known[d.Args[i].Name] = &d.Args[i]
	}

	for name := range args {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("metric %s: unknown argument %q", d.ID, name)
		}
	}

	normalized := make(map[string]any, len(d.Args))
	for i := range d.Args {
		spec := &d.Args[i]
		raw, present := args[spec.Name]
		if !present || raw == nil {
			if spec.Required {
				return nil, fmt.Errorf("metric %s: missing required argument %q", d.ID, spec.Name)
			}
			if spec.Default != nil {
				normalized[spec.Name] = spec.Default
			}
			continue
		}

		val, err := coerceArg(spec, raw)
		if err != nil {
			return nil, fmt.Errorf("metric %s: argument %q: %w", d.ID, spec.Name, err)
		}
		normalized[spec.Name] = val
	}

	return normalized, nil
}

// coerceArg converts a raw argument into its canonical representation:
// bool, float64, string, or []string.
func coerceArg(spec *ArgSpec, raw any) (any, error) {
	switch spec.Kind {
	case ArgBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", raw)
		}
		return b, nil

	case ArgNumber:
		switch n := raw.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		default:
			return nil, fmt.Errorf("expected number, got %T", raw)
		}

	case ArgString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		if len(spec.OneOf) > 0 {
			valid := false
			for _, allowed := range spec.OneOf {
				if s == allowed {
					valid = true
					break
				}
			}
			if !valid {
				return nil, fmt.Errorf("value %q not in %v", s, spec.OneOf)
			}
		}
		return s, nil

	case ArgStringList:
		var list []string
		switch l := raw.(type) {
		case []string:
			list = l
		case []any:
			list = make([]string, 0, len(l))
			for _, item := range l {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("expected list of strings, got %T element", item)
				}
				list = append(list, s)
			}
		default:
			return nil, fmt.Errorf("expected list of strings, got %T", raw)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("list must not be empty")
		}
		if spec.Regexps {
			for _, pattern := range list {
				if _, err := regexp.Compile(pattern); err != nil {
					return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
				}
			}
		}
		return list, nil

	default:
		return nil, fmt.Errorf("unknown argument kind %d", spec.Kind)
	}
}
