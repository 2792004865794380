// Package matcher selects and ranks candidate factors by similarity score.
package matcher

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/pfmtransfer/internal/model"
)

// Policy holds the confidence tier boundaries. A score at or above a
// boundary belongs to that tier.
type Policy struct {
	High   float64
	Medium float64
	Low    float64
}

// DefaultPolicy returns the fixed 0.95 / 0.80 / 0.50 tiers.
func DefaultPolicy() Policy {
	return Policy{High: 0.95, Medium: 0.80, Low: 0.50}
}

// Validate checks that 0 < Low < Medium < High <= 1.
func (p Policy) Validate() error {
	if !(p.Low > 0 && p.Low < p.Medium && p.Medium < p.High && p.High <= 1) {
		return eris.Wrapf(model.ErrInvalidConfig,
			"matcher: tiers must satisfy 0 < low < medium < high <= 1 (got %g/%g/%g)",
			p.Low, p.Medium, p.High)
	}
	return nil
}

// Tier classifies a score.
func (p Policy) Tier(score float64) model.Tier {
	switch {
	case score >= p.High:
		return model.TierHigh
	case score >= p.Medium:
		return model.TierMedium
	case score >= p.Low:
		return model.TierLow
	default:
		return model.TierNone
	}
}

// cutoffs returns the tier boundaries from lowest to highest.
func (p Policy) cutoffs() []float64 {
	return []float64{p.Low, p.Medium, p.High}
}
