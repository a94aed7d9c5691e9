package synth

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMultipliers parses a comma-separated multiplier list such as
// "2.0, 0.1". An empty string yields nil, which makes Inject draw random
// multipliers.
func ParseMultipliers(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		m, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing multiplier %q: %w", p, err)
		}
		if m <= 0 {
			return nil, fmt.Errorf("multiplier %v must be positive", m)
		}
		out = append(out, m)
	}
	return out, nil
}
