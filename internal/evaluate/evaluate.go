// Package evaluate measures agreement between transferred and reference
// profiles, alone or across a sweep of selection cutoffs.
package evaluate

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pfmtransfer/internal/consensus"
	"github.com/sells-group/pfmtransfer/internal/model"
	"github.com/sells-group/pfmtransfer/internal/pipeline"
)

// DefaultConcurrency bounds parallel sweep points when none is configured.
const DefaultConcurrency = 4

// Evaluator scores predictions against references.
type Evaluator struct {
	distance    consensus.DistanceOracle
	predictor   *pipeline.Predictor
	concurrency int
}

// New creates an Evaluator. predictor is only needed for Sweep.
func New(distance consensus.DistanceOracle, predictor *pipeline.Predictor, concurrency int) *Evaluator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Evaluator{distance: distance, predictor: predictor, concurrency: concurrency}
}

// Evaluate averages the self-normalized similarity of each non-empty
// prediction to its reference. A nil or empty prediction counts against the
// prediction rate only. A mean that is Infinity or NaN is reported as
// undefined.
func (e *Evaluator) Evaluate(ctx context.Context, predicted []*model.PFM, reference []model.PFM) (model.EvaluationResult, error) {
	if len(predicted) != len(reference) {
		return model.EvaluationResult{}, eris.Wrapf(model.ErrLengthMismatch,
			"evaluate: %d predictions for %d references", len(predicted), len(reference))
	}

	var sum float64
	count := 0
	for i, p := range predicted {
		if p == nil || p.Empty() {
			continue
		}
		d, err := e.score(ctx, *p, reference[i])
		if err != nil {
			return model.EvaluationResult{}, err
		}
		sum += d
		count++
	}

	res := model.EvaluationResult{Predicted: count, Total: len(reference)}
	if len(reference) > 0 {
		res.PredictionRate = float64(count) / float64(len(reference))
	}
	mean := sum / float64(count)
	if !math.IsNaN(mean) && !math.IsInf(mean, 0) {
		res.MeanScore = mean
		res.Defined = true
	}
	return res, nil
}

// score is the self-normalized comparison without the degenerate guard, so
// that a zero self-score surfaces as an undefined mean.
func (e *Evaluator) score(ctx context.Context, p, ref model.PFM) (float64, error) {
	xy, err := e.distance.Compare(ctx, p, ref)
	if err != nil {
		return 0, eris.Wrapf(err, "evaluate: compare %s/%s", p.Name, ref.Name)
	}
	xx, err := e.distance.Compare(ctx, p, p)
	if err != nil {
		return 0, eris.Wrapf(err, "evaluate: compare %s/%s", p.Name, p.Name)
	}
	yy, err := e.distance.Compare(ctx, ref, ref)
	if err != nil {
		return 0, eris.Wrapf(err, "evaluate: compare %s/%s", ref.Name, ref.Name)
	}
	return consensus.NormalizeScore(xy, xx, yy), nil
}

// Sweep runs the full selection, consensus and evaluation pipeline once
// per static cutoff in grid. Points are evaluated in parallel and returned
// in grid order.
func (e *Evaluator) Sweep(ctx context.Context, grid []float64, queries []pipeline.Query) ([]model.SweepPoint, error) {
	if e.predictor == nil {
		return nil, eris.New("evaluate: sweep requires a predictor")
	}
	reference := make([]model.PFM, len(queries))
	for i, q := range queries {
		if q.Reference == nil || q.Reference.Empty() {
			return nil, eris.Errorf("evaluate: query %s has no reference profile", q.Name)
		}
		reference[i] = *q.Reference
	}

	points := make([]model.SweepPoint, len(grid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, threshold := range grid {
		g.Go(func() error {
			predicted := make([]*model.PFM, len(queries))
			for j, q := range queries {
				pred, err := e.predictor.Predict(gctx, q, model.StaticThreshold(threshold))
				if err != nil {
					return eris.Wrapf(err, "evaluate: threshold %g", threshold)
				}
				predicted[j] = pred.Profile()
			}
			res, err := e.Evaluate(gctx, predicted, reference)
			if err != nil {
				return eris.Wrapf(err, "evaluate: threshold %g", threshold)
			}
			points[i] = model.SweepPoint{Threshold: threshold, Result: res}

			zap.L().Debug("evaluate: sweep point",
				zap.Float64("threshold", threshold),
				zap.String("mean_score", res.MeanString()),
				zap.Float64("prediction_rate", res.PredictionRate),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("evaluate: sweep complete",
		zap.Int("points", len(points)),
		zap.Int("queries", len(queries)),
	)
	return points, nil
}

// Grid returns start, start+step, ... up to and including stop.
func Grid(start, stop, step float64) ([]float64, error) {
	if !(step > 0) {
		return nil, eris.Wrapf(model.ErrInvalidConfig, "evaluate: grid step must be > 0 (got %g)", step)
	}
	if start > stop {
		return nil, eris.Wrapf(model.ErrInvalidConfig, "evaluate: grid start %g is above stop %g", start, stop)
	}
	n := int(math.Floor((stop-start)/step+1e-9)) + 1
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = math.Round((start+float64(i)*step)*1e9) / 1e9
	}
	return grid, nil
}
