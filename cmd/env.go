package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pfmtransfer/internal/alignment"
	"github.com/sells-group/pfmtransfer/internal/config"
	"github.com/sells-group/pfmtransfer/internal/consensus"
	"github.com/sells-group/pfmtransfer/internal/evaluate"
	"github.com/sells-group/pfmtransfer/internal/matcher"
	"github.com/sells-group/pfmtransfer/internal/model"
	"github.com/sells-group/pfmtransfer/internal/oracle"
	"github.com/sells-group/pfmtransfer/internal/pipeline"
	"github.com/sells-group/pfmtransfer/internal/resilience"
	"github.com/sells-group/pfmtransfer/internal/store"
)

// transferEnv holds the oracles and engine components shared by the
// predict, evaluate, sweep and serve commands.
type transferEnv struct {
	Store     store.Store // nil when store.driver is "none"
	Oracles   oracle.Set
	Scorer    *pipeline.Scorer // nil without an aligner
	Predictor *pipeline.Predictor
	Evaluator *evaluate.Evaluator
	Threshold model.ThresholdConfig
}

// Close releases resources held by the environment.
func (te *transferEnv) Close() {
	if te.Store != nil {
		_ = te.Store.Close()
	}
}

// initTransfer validates cfg for mode and builds the engine. Callers should
// defer env.Close().
func initTransfer(ctx context.Context, c *config.Config, mode string, withStore bool) (*transferEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	set, err := buildOracles(c.Oracle)
	if err != nil {
		return nil, err
	}

	selector, err := matcher.NewSelector(matcher.DefaultPolicy())
	if err != nil {
		return nil, eris.Wrap(err, "init selector")
	}
	builder := consensus.NewBuilder(set.Distance, set.Merger)
	predictor := pipeline.NewPredictor(selector, builder, pipeline.Options{
		MaxMatches:       c.Transfer.MaxMatches,
		OutlierThreshold: c.Transfer.OutlierThreshold,
	})

	env := &transferEnv{
		Oracles:   set,
		Predictor: predictor,
		Evaluator: evaluate.New(set.Distance, predictor, c.Sweep.Concurrency),
		Threshold: thresholdConfig(c.Transfer),
	}

	if set.Aligner != nil {
		matrix, err := loadMatrix(c.Transfer.Matrix)
		if err != nil {
			return nil, err
		}
		interp := alignment.NewInterpreter(set.Aligner, matrix, c.Transfer.Tolerance, model.AlignMode(c.Transfer.AlignMode))
		env.Scorer = pipeline.NewScorer(interp, set.Classifier)
	}

	if withStore && c.Store.Driver != "none" {
		st, err := initStore(ctx, c.Store)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		env.Store = st
	}

	zap.L().Debug("transfer environment ready",
		zap.String("mode", mode),
		zap.String("threshold_mode", string(env.Threshold.Mode)),
		zap.Bool("rescore", env.Scorer != nil),
		zap.Bool("store", env.Store != nil))
	return env, nil
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "pfmtransfer.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{MaxConns: sc.MaxConns, MinConns: sc.MinConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// buildOracles picks a command or the built-in implementation for each
// capability and applies the configured rate limit, breaker and retry
// policy around them.
func buildOracles(oc config.OracleConfig) (oracle.Set, error) {
	placement := oracle.ColumnDot{MinOverlap: oc.MinOverlap, BothStrands: oc.BothStrands}
	weights := oc.ClassifierWeights
	if len(weights) == 0 {
		weights = oracle.DefaultLogistic().Weights
	}
	set := oracle.Builtin(placement, oracle.Logistic{Weights: weights, Bias: oc.ClassifierBias})

	timeout := time.Duration(oc.TimeoutSecs) * time.Second
	command := func(name string, cc config.CommandConfig) (oracle.Command, bool, error) {
		if cc.Path == "" {
			return oracle.Command{}, false, nil
		}
		if _, err := os.Stat(cc.Path); err != nil {
			return oracle.Command{}, false, eris.Wrapf(err, "oracle %s", name)
		}
		return oracle.Command{Name: name, Path: cc.Path, Args: cc.Args, Timeout: timeout}, true, nil
	}

	if c, ok, err := command("aligner", oc.Aligner); err != nil {
		return oracle.Set{}, err
	} else if ok {
		set.Aligner = c
	}
	if c, ok, err := command("classifier", oc.Classifier); err != nil {
		return oracle.Set{}, err
	} else if ok {
		set.Classifier = c
	}
	if c, ok, err := command("distance", oc.Distance); err != nil {
		return oracle.Set{}, err
	} else if ok {
		set.Distance = c
	}
	if c, ok, err := command("merger", oc.Merger); err != nil {
		return oracle.Set{}, err
	} else if ok {
		set.Merger = c
	}

	if oc.Rate.PerSecond > 0 {
		burst := oc.Rate.Burst
		if burst <= 0 {
			burst = 1
		}
		set = set.WithLimit(rate.NewLimiter(rate.Limit(oc.Rate.PerSecond), burst))
	}
	set = set.WithBreaker(oc.Breaker.Threshold, time.Duration(oc.Breaker.CooldownSecs)*time.Second)
	set = set.WithRetry(resilience.FromSettings(oc.Retry.MaxAttempts, oc.Retry.InitialBackoffMs, oc.Retry.MaxBackoffMs))
	return set, nil
}

func loadMatrix(path string) (*alignment.SubstitutionMatrix, error) {
	if path == "" {
		return alignment.BLOSUM62(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open matrix %s", path)
	}
	defer f.Close() //nolint:errcheck
	m, err := alignment.ParseMatrix(f)
	if err != nil {
		return nil, eris.Wrapf(err, "parse matrix %s", path)
	}
	return m, nil
}

func thresholdConfig(tc config.TransferConfig) model.ThresholdConfig {
	if tc.ThresholdMode == string(model.ThresholdStatic) {
		return model.StaticThreshold(tc.Cutoff)
	}
	return model.DynamicThreshold()
}

// predictAll rescores each query when an aligner is configured, then runs
// the predictor. Queries are processed one at a time.
func (te *transferEnv) predictAll(ctx context.Context, queries []pipeline.Query, threshold model.ThresholdConfig) ([]pipeline.Prediction, error) {
	preds := make([]pipeline.Prediction, 0, len(queries))
	for _, q := range queries {
		if te.Scorer != nil {
			scored, err := te.Scorer.Score(ctx, q)
			if err != nil {
				return nil, err
			}
			q = scored
		}
		p, err := te.Predictor.Predict(ctx, q, threshold)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// records converts predictions into store records.
func records(preds []pipeline.Prediction) []*model.PredictionRecord {
	out := make([]*model.PredictionRecord, len(preds))
	for i, p := range preds {
		rec := &model.PredictionRecord{Query: p.Query, Selection: p.Selection, Profile: p.Profile()}
		if p.Consensus != nil {
			rec.Removed = p.Consensus.Removed
		}
		out[i] = rec
	}
	return out
}
