package matcher

import (
	"cmp"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pfmtransfer/internal/model"
)

const (
	// DefaultMaxMatches is used when maxMatches is zero.
	DefaultMaxMatches = 5
	// MaxMatchesLimit is the largest accepted maxMatches.
	MaxMatchesLimit = 1000
)

// Selector filters candidates under a threshold policy.
type Selector struct {
	policy Policy
}

// NewSelector creates a Selector with the given tier policy.
func NewSelector(policy Policy) (*Selector, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Selector{policy: policy}, nil
}

// Policy returns the selector's tier policy.
func (s *Selector) Policy() Policy {
	return s.policy
}

// Select keeps candidates scoring strictly above the effective cutoff,
// ranks them by descending score and truncates to maxMatches. An empty
// result is a NoMatch selection, not an error.
func (s *Selector) Select(candidates []model.CandidateMatch, cfg model.ThresholdConfig, maxMatches int) (model.Selection, error) {
	if maxMatches == 0 {
		maxMatches = DefaultMaxMatches
	}
	if maxMatches < 1 || maxMatches > MaxMatchesLimit {
		return model.Selection{}, eris.Wrapf(model.ErrInvalidConfig,
			"matcher: max matches must be between 1 and %d (got %d)", MaxMatchesLimit, maxMatches)
	}

	unique := dedupe(candidates)

	var cutoff float64
	switch cfg.Mode {
	case model.ThresholdStatic:
		if cfg.Cutoff < 0 || cfg.Cutoff > 1 {
			return model.Selection{}, eris.Wrapf(model.ErrInvalidConfig,
				"matcher: static cutoff must be in [0,1] (got %g)", cfg.Cutoff)
		}
		cutoff = cfg.Cutoff
	case model.ThresholdDynamic:
		var ok bool
		cutoff, ok = s.dynamicCutoff(unique)
		if !ok {
			return noMatch(model.NoMatchNoSimilarFactor, s.policy.Low), nil
		}
	default:
		return model.Selection{}, eris.Wrapf(model.ErrInvalidConfig, "matcher: unknown threshold mode %q", cfg.Mode)
	}

	var kept []model.CandidateMatch
	for _, c := range unique {
		if c.Score > cutoff {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return noMatch(model.NoMatchNoSimilarFactor, cutoff), nil
	}

	slices.SortStableFunc(kept, func(a, b model.CandidateMatch) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(kept) > maxMatches {
		kept = kept[:maxMatches]
	}

	sel := model.Selection{
		Matches: kept,
		Tier:    s.policy.Tier(kept[len(kept)-1].Score),
		Cutoff:  cutoff,
	}
	zap.L().Debug("matcher: selection complete",
		zap.Int("candidates", len(unique)),
		zap.Int("selected", len(kept)),
		zap.Float64("cutoff", cutoff),
		zap.String("tier", string(sel.Tier)),
	)
	return sel, nil
}

// SelectClassified is Select for a query whose class was determined
// upstream. An empty class yields an unclassified NoMatch.
func (s *Selector) SelectClassified(class string, candidates []model.CandidateMatch, cfg model.ThresholdConfig, maxMatches int) (model.Selection, error) {
	if class == "" {
		return noMatch(model.NoMatchUnclassified, 0), nil
	}
	return s.Select(candidates, cfg, maxMatches)
}

// dynamicCutoff returns the lowest tier boundary that at least one
// candidate exceeds.
func (s *Selector) dynamicCutoff(candidates []model.CandidateMatch) (float64, bool) {
	for _, cut := range s.policy.cutoffs() {
		for _, c := range candidates {
			if c.Score > cut {
				return cut, true
			}
		}
	}
	return 0, false
}

// dedupe keeps the highest score per candidate name, in first-seen order.
func dedupe(candidates []model.CandidateMatch) []model.CandidateMatch {
	idx := make(map[string]int, len(candidates))
	out := make([]model.CandidateMatch, 0, len(candidates))
	for _, c := range candidates {
		if i, ok := idx[c.Name]; ok {
			if c.Score > out[i].Score {
				out[i].Score = c.Score
			}
			continue
		}
		idx[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

func noMatch(reason model.NoMatchReason, cutoff float64) model.Selection {
	return model.Selection{Tier: model.TierNone, Cutoff: cutoff, NoMatch: reason}
}
