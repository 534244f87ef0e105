package similarity

// Comparison is one weighted similarity signal feeding a composite score.
type Comparison struct {
	Score  float64
	Weight float64
}

// Composite returns the weighted average over comparisons with a positive
// score. Zero-score entries are absent evidence, not counter-evidence: they
// are excluded from both the numerator and the denominator. Returns 0 when
// no positive-score entries exist.
func Composite(comparisons []Comparison) float64 {
	var sum, weight float64
	for _, c := range comparisons {
		if c.Score <= 0 || c.Weight <= 0 {
			continue
		}
		sum += c.Score * c.Weight
		weight += c.Weight
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}
