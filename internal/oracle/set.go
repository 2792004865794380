package oracle

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/pfmtransfer/internal/alignment"
	"github.com/sells-group/pfmtransfer/internal/consensus"
	"github.com/sells-group/pfmtransfer/internal/model"
	"github.com/sells-group/pfmtransfer/internal/pipeline"
	"github.com/sells-group/pfmtransfer/internal/resilience"
)

// Set groups the four capabilities a transfer run needs. Nil members are
// left nil by every decorator.
type Set struct {
	Aligner    alignment.Aligner
	Classifier pipeline.Classifier
	Distance   consensus.DistanceOracle
	Merger     consensus.MergeOracle
}

// Builtin returns the in-process oracles. There is no built-in aligner.
func Builtin(placement ColumnDot, classifier Logistic) Set {
	return Set{
		Classifier: classifier,
		Distance:   placement,
		Merger:     Average{Placement: placement},
	}
}

// invoker runs fn on behalf of operation op.
type invoker func(ctx context.Context, op string, fn func(ctx context.Context) error) error

// WithRetry retries transient failures of every member.
func (s Set) WithRetry(cfg resilience.RetryConfig) Set {
	return s.wrap(func(ctx context.Context, op string, fn func(ctx context.Context) error) error {
		c := cfg
		if c.OnRetry == nil {
			c.OnRetry = resilience.RetryLogger("oracle", op)
		}
		return resilience.Do(ctx, c, fn)
	})
}

// WithBreaker gives each operation its own circuit breaker.
func (s Set) WithBreaker(threshold int, cooldown time.Duration) Set {
	breakers := map[string]*resilience.Breaker{}
	for _, op := range []string{OpAlign, OpClassify, OpCompare, OpMerge} {
		breakers[op] = resilience.NewBreaker(op, threshold, cooldown)
	}
	return s.wrap(func(ctx context.Context, op string, fn func(ctx context.Context) error) error {
		_, err := resilience.Call(ctx, breakers[op], func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx)
		})
		return err
	})
}

// WithLimit makes every call wait for the shared limiter.
func (s Set) WithLimit(l *rate.Limiter) Set {
	if l == nil {
		return s
	}
	return s.wrap(func(ctx context.Context, op string, fn func(ctx context.Context) error) error {
		if err := l.Wait(ctx); err != nil {
			return eris.Wrapf(err, "oracle: %s: rate limit", op)
		}
		return fn(ctx)
	})
}

func (s Set) wrap(inv invoker) Set {
	var out Set
	if s.Aligner != nil {
		out.Aligner = aligner{next: s.Aligner, inv: inv}
	}
	if s.Classifier != nil {
		out.Classifier = classifier{next: s.Classifier, inv: inv}
	}
	if s.Distance != nil {
		out.Distance = distance{next: s.Distance, inv: inv}
	}
	if s.Merger != nil {
		out.Merger = merger{next: s.Merger, inv: inv}
	}
	return out
}

type aligner struct {
	next alignment.Aligner
	inv  invoker
}

func (w aligner) Align(ctx context.Context, a, b model.Sequence, m *alignment.SubstitutionMatrix, mode model.AlignMode) (model.AlignmentTrace, error) {
	var out model.AlignmentTrace
	err := w.inv(ctx, OpAlign, func(ctx context.Context) error {
		var err error
		out, err = w.next.Align(ctx, a, b, m, mode)
		return err
	})
	return out, err
}

type classifier struct {
	next pipeline.Classifier
	inv  invoker
}

func (w classifier) Score(ctx context.Context, features []float64) (float64, error) {
	var out float64
	err := w.inv(ctx, OpClassify, func(ctx context.Context) error {
		var err error
		out, err = w.next.Score(ctx, features)
		return err
	})
	return out, err
}

type distance struct {
	next consensus.DistanceOracle
	inv  invoker
}

func (w distance) Compare(ctx context.Context, a, b model.PFM) (float64, error) {
	var out float64
	err := w.inv(ctx, OpCompare, func(ctx context.Context) error {
		var err error
		out, err = w.next.Compare(ctx, a, b)
		return err
	})
	return out, err
}

type merger struct {
	next consensus.MergeOracle
	inv  invoker
}

func (w merger) Merge(ctx context.Context, profiles []model.PFM) (model.PercentPFM, error) {
	var out model.PercentPFM
	err := w.inv(ctx, OpMerge, func(ctx context.Context) error {
		var err error
		out, err = w.next.Merge(ctx, profiles)
		return err
	})
	return out, err
}
