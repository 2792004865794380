// Package consensus removes outlier candidate profiles and merges the
// survivors into a single transferred profile.
package consensus

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pfmtransfer/internal/model"
	"github.com/sells-group/pfmtransfer/internal/profile"
)

// Outlier threshold bounds accepted by Builder.Merge.
const (
	MinOutlierThreshold = 0.1
	MaxOutlierThreshold = 1.0
)

// DistanceOracle returns an unnormalized comparison score for two profiles.
type DistanceOracle interface {
	Compare(ctx context.Context, a, b model.PFM) (float64, error)
}

// MergeOracle aligns and averages profiles into one percentage-form profile.
type MergeOracle interface {
	Merge(ctx context.Context, profiles []model.PFM) (model.PercentPFM, error)
}

// Candidate is a profile donated by a selected match.
type Candidate struct {
	Profile model.PFM
	Score   float64
}

// Result is the transferred profile and how it was built.
type Result struct {
	Profile  model.PFM `json:"profile"`
	Kept     []string  `json:"kept"`
	Removed  []string  `json:"removed,omitempty"`
	Merged   bool      `json:"merged"`
	Fallback bool      `json:"fallback,omitempty"`
}

// Builder builds consensus profiles using the injected oracles.
type Builder struct {
	distance DistanceOracle
	merger   MergeOracle
}

// NewBuilder creates a Builder.
func NewBuilder(distance DistanceOracle, merger MergeOracle) *Builder {
	return &Builder{distance: distance, merger: merger}
}

// Merge filters outliers among candidates and merges the rest.
//
// A single candidate is returned unchanged without consulting either oracle.
// Otherwise the candidate with the lowest mean similarity to the others is
// removed while that mean is below outlierThreshold, re-evaluating after each
// removal. When every remaining candidate is below the threshold at once the
// highest-scoring one is returned on its own.
func (b *Builder) Merge(ctx context.Context, candidates []Candidate, outlierThreshold float64) (Result, error) {
	switch len(candidates) {
	case 0:
		return Result{}, eris.New("consensus: no candidate profiles")
	case 1:
		c := candidates[0]
		return Result{Profile: c.Profile.Clone(), Kept: []string{c.Profile.Name}}, nil
	}

	if outlierThreshold < MinOutlierThreshold || outlierThreshold > MaxOutlierThreshold {
		return Result{}, eris.Wrapf(model.ErrInvalidConfig,
			"consensus: outlier threshold must be in [%g,%g] (got %g)",
			MinOutlierThreshold, MaxOutlierThreshold, outlierThreshold)
	}

	profiles := make([]model.PFM, len(candidates))
	for i, c := range candidates {
		profiles[i] = c.Profile
	}
	sim, err := SimilarityMatrix(ctx, b.distance, profiles)
	if err != nil {
		return Result{}, err
	}

	log := zap.L().With(zap.Int("candidates", len(candidates)), zap.Float64("outlier_threshold", outlierThreshold))

	remaining := make([]int, len(candidates))
	for i := range remaining {
		remaining[i] = i
	}
	var removed []string

	for len(remaining) > 1 {
		means := meanSimilarity(sim, remaining)

		below := 0
		worst := -1
		for k, i := range remaining {
			if means[k] >= outlierThreshold {
				continue
			}
			below++
			if worst < 0 || means[k] < means[worst] ||
				(means[k] == means[worst] && candidates[i].Score <= candidates[remaining[worst]].Score) {
				worst = k
			}
		}
		if below == 0 {
			break
		}
		if below == len(remaining) {
			best := remaining[0]
			for _, i := range remaining[1:] {
				if candidates[i].Score > candidates[best].Score {
					best = i
				}
			}
			for _, i := range remaining {
				if i != best {
					removed = append(removed, candidates[i].Profile.Name)
				}
			}
			log.Info("consensus: all candidates are mutual outliers, keeping best match",
				zap.String("kept", candidates[best].Profile.Name))
			return Result{
				Profile:  candidates[best].Profile.Clone(),
				Kept:     []string{candidates[best].Profile.Name},
				Removed:  removed,
				Fallback: true,
			}, nil
		}

		idx := remaining[worst]
		log.Debug("consensus: removing outlier",
			zap.String("profile", candidates[idx].Profile.Name),
			zap.Float64("mean_similarity", means[worst]))
		removed = append(removed, candidates[idx].Profile.Name)
		remaining = append(remaining[:worst:worst], remaining[worst+1:]...)
	}

	kept := make([]string, len(remaining))
	survivors := make([]model.PFM, len(remaining))
	for k, i := range remaining {
		kept[k] = candidates[i].Profile.Name
		survivors[k] = candidates[i].Profile
	}

	if len(survivors) == 1 {
		return Result{Profile: survivors[0].Clone(), Kept: kept, Removed: removed}, nil
	}

	merged, err := b.merger.Merge(ctx, survivors)
	if err != nil {
		return Result{}, eris.Wrap(err, "consensus: merge")
	}
	out, err := profile.ToPFM(merged)
	if err != nil {
		return Result{}, eris.Wrap(err, "consensus: convert merged profile")
	}
	if out.Name == "" {
		out.Name = "consensus"
	}

	log.Info("consensus: merged profiles",
		zap.Strings("kept", kept),
		zap.Strings("removed", removed),
		zap.Int("length", out.Len()))
	return Result{Profile: out, Kept: kept, Removed: removed, Merged: true}, nil
}

// SimilarityMatrix returns the self-normalized similarity of every pair of
// profiles. The diagonal is 1 and each off-diagonal pair is compared once.
func SimilarityMatrix(ctx context.Context, oracle DistanceOracle, profiles []model.PFM) ([][]float64, error) {
	self := make([]float64, len(profiles))
	for i, p := range profiles {
		s, err := oracle.Compare(ctx, p, p)
		if err != nil {
			return nil, eris.Wrapf(err, "consensus: compare %s/%s", p.Name, p.Name)
		}
		if !(s > 0) {
			return nil, eris.Wrapf(model.ErrDegenerateProfile, "consensus: %s self-score %g", p.Name, s)
		}
		self[i] = s
	}

	sim := make([][]float64, len(profiles))
	for i := range sim {
		sim[i] = make([]float64, len(profiles))
		sim[i][i] = 1
	}
	for i := range profiles {
		for j := i + 1; j < len(profiles); j++ {
			raw, err := oracle.Compare(ctx, profiles[i], profiles[j])
			if err != nil {
				return nil, eris.Wrapf(err, "consensus: compare %s/%s", profiles[i].Name, profiles[j].Name)
			}
			d := NormalizeScore(raw, self[i], self[j])
			sim[i][j] = d
			sim[j][i] = d
		}
	}
	return sim, nil
}

// NormalizeScore divides xy by the geometric mean of the self-scores xx and
// yy. It does not guard against zero self-scores; the result is then
// Inf or NaN. Equal self-scores divide directly so that self-pairs give
// exactly 1.
func NormalizeScore(xy, xx, yy float64) float64 {
	if xx == yy {
		return xy / xx
	}
	return xy / math.Sqrt(xx*yy)
}

// meanSimilarity returns, per remaining index, the mean similarity to the
// other remaining profiles.
func meanSimilarity(sim [][]float64, remaining []int) []float64 {
	means := make([]float64, len(remaining))
	for k, i := range remaining {
		var sum float64
		for _, j := range remaining {
			if j != i {
				sum += sim[i][j]
			}
		}
		means[k] = sum / float64(len(remaining)-1)
	}
	return means
}
