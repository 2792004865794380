// Package alignment interprets pairwise alignment output as normalized
// similarity statistics for the match classifier.
package alignment

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pfmtransfer/internal/model"
)

// Aligner produces a pairwise alignment of two sequences.
type Aligner interface {
	Align(ctx context.Context, a, b model.Sequence, m *SubstitutionMatrix, mode model.AlignMode) (model.AlignmentTrace, error)
}

// SimilarityRatio returns identity columns divided by non-gap columns.
// Columns where either side is a gap are excluded from both counts.
func SimilarityRatio(trace model.AlignmentTrace) (float64, error) {
	return countIdentity(trace, func(_, _ byte) bool { return false })
}

// ToleranceIdentity is SimilarityRatio with substitutions scoring at least
// tolerance in m counted as identities.
func ToleranceIdentity(trace model.AlignmentTrace, m *SubstitutionMatrix, tolerance int) (float64, error) {
	if m == nil {
		return 0, eris.Wrap(model.ErrInvalidConfig, "alignment: nil substitution matrix")
	}
	return countIdentity(trace, func(q, t byte) bool {
		return m.Score(q, t) >= tolerance
	})
}

func countIdentity(trace model.AlignmentTrace, equivalent func(q, t byte) bool) (float64, error) {
	if err := validate(trace); err != nil {
		return 0, err
	}

	var matches, aligned int
	for i := 0; i < len(trace.Markers); i++ {
		q, t := trace.Query[i], trace.Target[i]
		if model.IsGap(q) || model.IsGap(t) {
			continue
		}
		aligned++
		if trace.Markers[i] == model.MarkerIdentity || equivalent(q, t) {
			matches++
		}
	}
	if aligned == 0 {
		return 0, eris.Wrap(model.ErrMalformedTrace, "alignment: no aligned columns")
	}
	return float64(matches) / float64(aligned), nil
}

func validate(trace model.AlignmentTrace) error {
	if len(trace.Query) != len(trace.Target) || len(trace.Query) != len(trace.Markers) {
		return eris.Wrapf(model.ErrMalformedTrace,
			"alignment: query=%d target=%d markers=%d",
			len(trace.Query), len(trace.Target), len(trace.Markers))
	}
	return nil
}

// Normalize divides xy by the geometric mean of the self-scores xx and yy.
// It is exactly symmetric in (xx, yy) and Normalize(x, x, x) == 1.
func Normalize(xy, xx, yy float64) (float64, error) {
	if !(xx > 0) || !(yy > 0) {
		return 0, eris.Wrapf(model.ErrDegenerateSequence, "alignment: self-scores %g, %g", xx, yy)
	}
	if xx == yy {
		return xy / xx, nil
	}
	return xy / math.Sqrt(xx*yy), nil
}

// SelfNormalized aligns a with b and each with itself, returning
// score(a,b) / sqrt(score(a,a) * score(b,b)).
func SelfNormalized(ctx context.Context, al Aligner, a, b model.Sequence, m *SubstitutionMatrix, mode model.AlignMode) (float64, error) {
	if a.Len() == 0 {
		return 0, eris.Wrapf(model.ErrDegenerateSequence, "alignment: %q is empty", a.Name)
	}
	if b.Len() == 0 {
		return 0, eris.Wrapf(model.ErrDegenerateSequence, "alignment: %q is empty", b.Name)
	}

	ab, err := al.Align(ctx, a, b, m, mode)
	if err != nil {
		return 0, eris.Wrapf(err, "alignment: align %s/%s", a.Name, b.Name)
	}
	aa, err := al.Align(ctx, a, a, m, mode)
	if err != nil {
		return 0, eris.Wrapf(err, "alignment: align %s/%s", a.Name, a.Name)
	}
	bb, err := al.Align(ctx, b, b, m, mode)
	if err != nil {
		return 0, eris.Wrapf(err, "alignment: align %s/%s", b.Name, b.Name)
	}
	return Normalize(ab.Score, aa.Score, bb.Score)
}
