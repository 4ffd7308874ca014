package engine

import "testing"

func TestMostlySuccess(t *testing.T) {
	tests := []struct {
		name      string
		satisfied int
		eligible  int
		mostly    float64
		want      bool
	}{
		{"all satisfied", 10, 10, 1.0, true},
		{"one violation no tolerance", 9, 10, 1.0, false},
		{"exact fraction succeeds", 8, 10, 0.8, true},
		{"just under fraction fails", 7, 10, 0.8, false},
		{"no eligible rows is vacuous", 0, 0, 1.0, true},
		{"no eligible rows with tolerance", 0, 0, 0.5, true},
		{"zero mostly always succeeds", 0, 10, 0.0, true},
		{"single row satisfied", 1, 1, 1.0, true},
		{"single row violated", 0, 1, 1.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mostlySuccess(tt.satisfied, tt.eligible, tt.mostly)
			if got != tt.want {
				t.Errorf("mostlySuccess(%d, %d, %v) = %v, want %v",
					tt.satisfied, tt.eligible, tt.mostly, got, tt.want)
			}
		})
	}
}

func TestBoundsSuccess(t *testing.T) {
	ptr := func(f float64) *float64 { return &f }

	tests := []struct {
		name     string
		observed float64
		params   successParams
		want     bool
	}{
		{"within both bounds", 5, successParams{minValue: ptr(1), maxValue: ptr(10)}, true},
		{"at min inclusive", 1, successParams{minValue: ptr(1), maxValue: ptr(10)}, true},
		{"at max inclusive", 10, successParams{minValue: ptr(1), maxValue: ptr(10)}, true},
		{"below min", 0, successParams{minValue: ptr(1)}, false},
		{"above max", 11, successParams{maxValue: ptr(10)}, false},
		{"at min strict fails", 1, successParams{minValue: ptr(1), strictMin: true}, false},
		{"above min strict", 1.01, successParams{minValue: ptr(1), strictMin: true}, true},
		{"at max strict fails", 10, successParams{maxValue: ptr(10), strictMax: true}, false},
		{"below max strict", 9.99, successParams{maxValue: ptr(10), strictMax: true}, true},
		{"min only unbounded above", 1e12, successParams{minValue: ptr(1)}, true},
		{"max only unbounded below", -1e12, successParams{maxValue: ptr(10)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := boundsSuccess(tt.observed, tt.params)
			if got != tt.want {
				t.Errorf("boundsSuccess(%v) = %v, want %v", tt.observed, got, tt.want)
			}
		})
	}
}
