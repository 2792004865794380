package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pfmtransfer/internal/alignment"
)

// Classifier turns a similarity feature vector into a match score in [0,1].
type Classifier interface {
	Score(ctx context.Context, features []float64) (float64, error)
}

// Scorer fills candidate scores from sequence similarity evidence.
type Scorer struct {
	interp     *alignment.Interpreter
	classifier Classifier
}

// NewScorer creates a Scorer.
func NewScorer(interp *alignment.Interpreter, classifier Classifier) *Scorer {
	return &Scorer{interp: interp, classifier: classifier}
}

// Score returns a copy of q whose candidate scores come from the classifier.
// q itself is not modified.
func (s *Scorer) Score(ctx context.Context, q Query) (Query, error) {
	out := q
	out.Candidates = make([]Candidate, len(q.Candidates))
	for i, c := range q.Candidates {
		if err := ctx.Err(); err != nil {
			return Query{}, err
		}
		f, err := s.interp.Features(ctx, q.Sequence, c.Sequence)
		if err != nil {
			return Query{}, eris.Wrapf(err, "pipeline: features %s/%s", q.Name, c.Name)
		}
		score, err := s.classifier.Score(ctx, f.Vector())
		if err != nil {
			return Query{}, eris.Wrapf(err, "pipeline: classify %s/%s", q.Name, c.Name)
		}
		c.Score = score
		out.Candidates[i] = c
	}
	zap.L().Debug("pipeline: scored candidates",
		zap.String("query", q.Name),
		zap.Int("candidates", len(out.Candidates)))
	return out, nil
}
