package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pfmtransfer/internal/consensus"
	"github.com/sells-group/pfmtransfer/internal/matcher"
	"github.com/sells-group/pfmtransfer/internal/model"
)

// Options tunes a Predictor.
type Options struct {
	MaxMatches       int
	OutlierThreshold float64
}

// Prediction is the outcome of one transfer request. Consensus is nil when
// the selection found no match.
type Prediction struct {
	Query     string            `json:"query"`
	Selection model.Selection   `json:"selection"`
	Consensus *consensus.Result `json:"consensus,omitempty"`
}

// Profile returns the transferred profile, or nil for a NoMatch.
func (p Prediction) Profile() *model.PFM {
	if p.Consensus == nil {
		return nil
	}
	return &p.Consensus.Profile
}

// Predictor selects matches for a query and builds the transferred profile.
type Predictor struct {
	selector *matcher.Selector
	builder  *consensus.Builder
	opts     Options
}

// NewPredictor creates a Predictor.
func NewPredictor(selector *matcher.Selector, builder *consensus.Builder, opts Options) *Predictor {
	return &Predictor{selector: selector, builder: builder, opts: opts}
}

// Predict runs selection then consensus for q. Selection must complete
// before consensus starts since outlier removal needs the full match set.
func (p *Predictor) Predict(ctx context.Context, q Query, threshold model.ThresholdConfig) (Prediction, error) {
	log := zap.L().With(zap.String("query", q.Name))

	sel, err := p.selector.SelectClassified(q.Class, q.Matches(), threshold, p.opts.MaxMatches)
	if err != nil {
		return Prediction{}, eris.Wrapf(err, "pipeline: select %s", q.Name)
	}
	pred := Prediction{Query: q.Name, Selection: sel}
	if !sel.Found() {
		log.Debug("pipeline: no match", zap.String("reason", string(sel.NoMatch)))
		return pred, nil
	}

	cands := make([]consensus.Candidate, 0, len(sel.Matches))
	for _, m := range sel.Matches {
		c, _ := q.Candidate(m.Name)
		if c.Profile.Empty() {
			return Prediction{}, eris.Errorf("pipeline: candidate %s of %s has no profile", m.Name, q.Name)
		}
		prof := c.Profile
		if prof.Name == "" {
			prof.Name = c.Name
		}
		cands = append(cands, consensus.Candidate{Profile: prof, Score: m.Score})
	}

	res, err := p.builder.Merge(ctx, cands, p.opts.OutlierThreshold)
	if err != nil {
		return Prediction{}, eris.Wrapf(err, "pipeline: consensus %s", q.Name)
	}
	pred.Consensus = &res

	log.Debug("pipeline: prediction complete",
		zap.Int("matches", len(sel.Matches)),
		zap.String("tier", string(sel.Tier)),
		zap.Int("removed", len(res.Removed)),
	)
	return pred, nil
}
