package oracle

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pfmtransfer/internal/model"
)

// Logistic is a linear classifier over similarity features with a sigmoid
// output in (0,1).
type Logistic struct {
	Weights []float64
	Bias    float64
}

// DefaultLogistic weights similarity ratio, tolerance identity and
// self-normalized score.
func DefaultLogistic() Logistic {
	return Logistic{Weights: []float64{6, 4, 8}, Bias: -10}
}

// Score implements pipeline.Classifier.
func (l Logistic) Score(ctx context.Context, features []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(features) != len(l.Weights) {
		return 0, eris.Wrapf(model.ErrInvalidConfig,
			"oracle: classifier expects %d features (got %d)", len(l.Weights), len(features))
	}
	z := l.Bias
	for i, f := range features {
		z += l.Weights[i] * f
	}
	return 1 / (1 + math.Exp(-z)), nil
}
