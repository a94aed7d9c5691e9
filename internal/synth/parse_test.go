package synth

import (
	"slices"
	"testing"
)

// TestParseMultipliers verifies list parsing, whitespace handling and rejection
// of non-positive or malformed entries.
func TestParseMultipliers(t *testing.T) {
	tests := []struct {
		in      string
		want    []float64
		wantErr bool
	}{
		{"", nil, false},
		{"  ", nil, false},
		{"2.0,0.1", []float64{2.0, 0.1}, false},
		{" 3 , 0.5 ", []float64{3, 0.5}, false},
		{"2,x", nil, true},
		{"2,,1", nil, true},
		{"0", nil, true},
		{"-1.5", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseMultipliers(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMultipliers(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("ParseMultipliers(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
