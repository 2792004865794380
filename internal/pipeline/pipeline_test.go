package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pfmtransfer/internal/alignment"
	"github.com/sells-group/pfmtransfer/internal/consensus"
	"github.com/sells-group/pfmtransfer/internal/matcher"
	"github.com/sells-group/pfmtransfer/internal/model"
)

// uniformDistance scores every distinct pair the same and self-pairs as 1.
type uniformDistance struct {
	pair float64
}

func (u uniformDistance) Compare(_ context.Context, a, b model.PFM) (float64, error) {
	if a.Name == b.Name {
		return 1, nil
	}
	return u.pair, nil
}

type mockMerger struct {
	mock.Mock
}

func (m *mockMerger) Merge(ctx context.Context, profiles []model.PFM) (model.PercentPFM, error) {
	args := m.Called(ctx, len(profiles))
	return args.Get(0).(model.PercentPFM), args.Error(1)
}

func newTestPredictor(t *testing.T, merger consensus.MergeOracle) *Predictor {
	t.Helper()
	sel, err := matcher.NewSelector(matcher.DefaultPolicy())
	require.NoError(t, err)
	return NewPredictor(sel, consensus.NewBuilder(uniformDistance{pair: 0.9}, merger), Options{
		MaxMatches:       5,
		OutlierThreshold: 0.5,
	})
}

func testQuery() Query {
	return Query{
		Name:  "Q1",
		Class: "bHLH",
		Candidates: []Candidate{
			{Name: "T01", Score: 0.97, Profile: model.PFM{Columns: []model.Column{{1, 0, 0, 0}}}},
			{Name: "T02", Score: 0.80, Profile: model.PFM{Columns: []model.Column{{0, 1, 0, 0}}}},
			{Name: "T03", Score: 0.40, Profile: model.PFM{Columns: []model.Column{{0, 0, 1, 0}}}},
		},
	}
}

func TestPredict_MergesSelectedProfiles(t *testing.T) {
	merger := new(mockMerger)
	merger.On("Merge", mock.Anything, 2).
		Return(model.PercentPFM{Name: "merged", Columns: []model.PercentColumn{{50, 50, 0, 0}}}, nil)

	pred, err := newTestPredictor(t, merger).Predict(context.Background(), testQuery(), model.DynamicThreshold())
	require.NoError(t, err)

	assert.Equal(t, "Q1", pred.Query)
	assert.Equal(t, []string{"T01", "T02"}, pred.Selection.Names())
	assert.Equal(t, model.TierMedium, pred.Selection.Tier)
	require.NotNil(t, pred.Profile())
	assert.Equal(t, []model.Column{{0.5, 0.5, 0, 0}}, pred.Profile().Columns)
	assert.Equal(t, []string{"T01", "T02"}, pred.Consensus.Kept)
	merger.AssertExpectations(t)
}

func TestPredict_SingleMatchSkipsMerge(t *testing.T) {
	merger := new(mockMerger)
	pred, err := newTestPredictor(t, merger).Predict(context.Background(), testQuery(), model.StaticThreshold(0.9))
	require.NoError(t, err)

	require.NotNil(t, pred.Profile())
	assert.Equal(t, "T01", pred.Profile().Name)
	assert.Equal(t, []model.Column{{1, 0, 0, 0}}, pred.Profile().Columns)
	merger.AssertNotCalled(t, "Merge")
}

func TestPredict_NoMatchReasons(t *testing.T) {
	p := newTestPredictor(t, new(mockMerger))

	q := testQuery()
	q.Class = ""
	pred, err := p.Predict(context.Background(), q, model.DynamicThreshold())
	require.NoError(t, err)
	assert.Equal(t, model.NoMatchUnclassified, pred.Selection.NoMatch)
	assert.Nil(t, pred.Profile())

	pred, err = p.Predict(context.Background(), testQuery(), model.StaticThreshold(0.99))
	require.NoError(t, err)
	assert.Equal(t, model.NoMatchNoSimilarFactor, pred.Selection.NoMatch)
	assert.Nil(t, pred.Profile())
}

func TestPredict_DuplicateNameUsesHighestScoringProfile(t *testing.T) {
	q := Query{
		Name:  "Q2",
		Class: "bHLH",
		Candidates: []Candidate{
			{Name: "MAX", Score: 0.55, Profile: model.PFM{Columns: []model.Column{{0, 0, 0, 1}}}},
			{Name: "MAX", Score: 0.99, Profile: model.PFM{Columns: []model.Column{{1, 0, 0, 0}}}},
		},
	}
	merger := new(mockMerger)
	pred, err := newTestPredictor(t, merger).Predict(context.Background(), q, model.StaticThreshold(0.9))
	require.NoError(t, err)

	assert.Equal(t, []model.CandidateMatch{{Name: "MAX", Score: 0.99}}, pred.Selection.Matches)
	require.NotNil(t, pred.Profile())
	assert.Equal(t, []model.Column{{1, 0, 0, 0}}, pred.Profile().Columns)
	merger.AssertNotCalled(t, "Merge")
}

func TestQuery_Candidate(t *testing.T) {
	q := Query{Candidates: []Candidate{
		{Name: "A", Score: 0.7, Profile: model.PFM{Name: "first"}},
		{Name: "A", Score: 0.9, Profile: model.PFM{Name: "best"}},
		{Name: "A", Score: 0.9, Profile: model.PFM{Name: "tie"}},
		{Name: "B", Score: 0.1},
	}}

	c, ok := q.Candidate("A")
	require.True(t, ok)
	assert.Equal(t, "best", c.Profile.Name)

	_, ok = q.Candidate("C")
	assert.False(t, ok)
}

func TestPredict_MissingProfile(t *testing.T) {
	q := testQuery()
	q.Candidates[0].Profile = model.PFM{}
	_, err := newTestPredictor(t, new(mockMerger)).Predict(context.Background(), q, model.StaticThreshold(0.9))
	assert.ErrorContains(t, err, "has no profile")
}

func TestPredict_InvalidThreshold(t *testing.T) {
	_, err := newTestPredictor(t, new(mockMerger)).Predict(context.Background(), testQuery(), model.StaticThreshold(2))
	assert.Error(t, err)
}

// fixedAligner returns the same pair trace for every distinct pair and a
// fixed self score for identical sequences.
type fixedAligner struct {
	pair model.AlignmentTrace
	self float64
}

func (f fixedAligner) Align(_ context.Context, a, b model.Sequence, _ *alignment.SubstitutionMatrix, _ model.AlignMode) (model.AlignmentTrace, error) {
	if a.Name == b.Name {
		return model.AlignmentTrace{Query: a.Residues, Target: b.Residues, Markers: "||||", Score: f.self}, nil
	}
	return f.pair, nil
}

type classifierFunc func(features []float64) (float64, error)

func (f classifierFunc) Score(_ context.Context, features []float64) (float64, error) {
	return f(features)
}

func TestScorer_Score(t *testing.T) {
	al := fixedAligner{
		pair: model.AlignmentTrace{Query: "MKVL", Target: "MRVL", Markers: "|:||", Score: 10},
		self: 20,
	}
	var seen [][]float64
	clf := classifierFunc(func(f []float64) (float64, error) {
		seen = append(seen, f)
		return f[2], nil
	})
	s := NewScorer(alignment.NewInterpreter(al, nil, alignment.DefaultTolerance, model.AlignGlobal), clf)

	q := Query{
		Name:     "Q",
		Sequence: model.Sequence{Name: "Q", Residues: "MKVL"},
		Candidates: []Candidate{
			{Name: "A", Sequence: model.Sequence{Name: "A", Residues: "MRVL"}, Score: 0.1},
		},
	}
	out, err := s.Score(context.Background(), q)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, out.Candidates[0].Score, 1e-12)
	assert.InDelta(t, 0.1, q.Candidates[0].Score, 1e-12, "input query is not modified")
	require.Len(t, seen, 1)
	assert.InDelta(t, 0.75, seen[0][0], 1e-12)
	// K/R scores 2 in BLOSUM62, above the default tolerance.
	assert.InDelta(t, 1.0, seen[0][1], 1e-12)
}

func TestScorer_ClassifierError(t *testing.T) {
	al := fixedAligner{pair: model.AlignmentTrace{Query: "M", Target: "M", Markers: "|", Score: 5}, self: 5}
	boom := errors.New("svm unavailable")
	s := NewScorer(alignment.NewInterpreter(al, nil, 1, ""), classifierFunc(func([]float64) (float64, error) {
		return 0, boom
	}))
	_, err := s.Score(context.Background(), Query{
		Name:       "Q",
		Sequence:   model.Sequence{Name: "Q", Residues: "M"},
		Candidates: []Candidate{{Name: "A", Sequence: model.Sequence{Name: "A", Residues: "M"}}},
	})
	assert.ErrorIs(t, err, boom)
}
