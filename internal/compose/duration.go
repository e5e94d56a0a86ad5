package compose

import "github.com/ShayCichocki/skillroute/pkg/models"

// DurationPolicy estimates how long one step using a skill takes, in seconds.
type DurationPolicy interface {
	Estimate(s *models.Skill) int
}

// LinearDuration estimates Base + PerComplexity * complexity seconds.
type LinearDuration struct {
	BaseSeconds          int
	PerComplexitySeconds int
}

// DefaultDurations returns the built-in 30s + 15s per complexity point policy.
func DefaultDurations() LinearDuration {
	return LinearDuration{BaseSeconds: 30, PerComplexitySeconds: 15}
}

// Estimate implements DurationPolicy.
func (d LinearDuration) Estimate(s *models.Skill) int {
	return d.BaseSeconds + d.PerComplexitySeconds*s.ComplexityScore
}
