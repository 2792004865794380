package alignment

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pfmtransfer/internal/model"
)

// DefaultTolerance is the BLOSUM62 score at which a substitution counts as
// a biochemically equivalent identity.
const DefaultTolerance = 1

// Features is the similarity evidence for one query/target pair.
type Features struct {
	Similarity float64 `json:"similarity"`
	Identity   float64 `json:"identity"`
	Normalized float64 `json:"normalized"`
}

// Vector returns the features in classifier input order.
func (f Features) Vector() []float64 {
	return []float64{f.Similarity, f.Identity, f.Normalized}
}

// Interpreter turns alignments from an Aligner into Features.
type Interpreter struct {
	aligner   Aligner
	matrix    *SubstitutionMatrix
	tolerance int
	mode      model.AlignMode
}

// NewInterpreter creates an Interpreter. A nil matrix selects BLOSUM62 and
// an empty mode selects global alignment.
func NewInterpreter(al Aligner, m *SubstitutionMatrix, tolerance int, mode model.AlignMode) *Interpreter {
	if m == nil {
		m = BLOSUM62()
	}
	if mode == "" {
		mode = model.AlignGlobal
	}
	return &Interpreter{aligner: al, matrix: m, tolerance: tolerance, mode: mode}
}

// Features aligns query against target and against themselves and derives
// all three similarity statistics from the traces.
func (in *Interpreter) Features(ctx context.Context, query, target model.Sequence) (Features, error) {
	if query.Len() == 0 || target.Len() == 0 {
		return Features{}, eris.Wrapf(model.ErrDegenerateSequence, "alignment: empty sequence in pair %s/%s", query.Name, target.Name)
	}

	pair, err := in.aligner.Align(ctx, query, target, in.matrix, in.mode)
	if err != nil {
		return Features{}, eris.Wrapf(err, "alignment: align %s/%s", query.Name, target.Name)
	}

	var f Features
	if f.Similarity, err = SimilarityRatio(pair); err != nil {
		return Features{}, eris.Wrapf(err, "alignment: similarity %s/%s", query.Name, target.Name)
	}
	if f.Identity, err = ToleranceIdentity(pair, in.matrix, in.tolerance); err != nil {
		return Features{}, eris.Wrapf(err, "alignment: identity %s/%s", query.Name, target.Name)
	}

	self, err := in.aligner.Align(ctx, query, query, in.matrix, in.mode)
	if err != nil {
		return Features{}, eris.Wrapf(err, "alignment: align %s/%s", query.Name, query.Name)
	}
	other, err := in.aligner.Align(ctx, target, target, in.matrix, in.mode)
	if err != nil {
		return Features{}, eris.Wrapf(err, "alignment: align %s/%s", target.Name, target.Name)
	}
	if f.Normalized, err = Normalize(pair.Score, self.Score, other.Score); err != nil {
		return Features{}, eris.Wrapf(err, "alignment: normalize %s/%s", query.Name, target.Name)
	}

	zap.L().Debug("alignment: features",
		zap.String("query", query.Name),
		zap.String("target", target.Name),
		zap.Float64("similarity", f.Similarity),
		zap.Float64("identity", f.Identity),
		zap.Float64("normalized", f.Normalized),
	)
	return f, nil
}
