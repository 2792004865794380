package model

import (
	"encoding/json"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelection_Found(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		want bool
	}{
		{"matches", Selection{Matches: []CandidateMatch{{Name: "MAX", Score: 0.9}}, Tier: TierMedium}, true},
		{"empty", Selection{Tier: TierNone}, false},
		{"no match reason", Selection{NoMatch: NoMatchUnclassified}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sel.Found())
		})
	}
}

func TestSelection_Names(t *testing.T) {
	sel := Selection{Matches: []CandidateMatch{{Name: "MAX", Score: 0.97}, {Name: "USF1", Score: 0.9}}}
	assert.Equal(t, []string{"MAX", "USF1"}, sel.Names())
	assert.Empty(t, Selection{}.Names())
}

func TestNoMatchReason_Message(t *testing.T) {
	assert.Equal(t, "no sufficiently similar factor found", NoMatchNoSimilarFactor.Message())
	assert.Equal(t, "unable to classify input", NoMatchUnclassified.Message())
	assert.Empty(t, NoMatchNone.Message())
}

func TestThresholdConstructors(t *testing.T) {
	assert.Equal(t, ThresholdConfig{Mode: ThresholdStatic, Cutoff: 0.7}, StaticThreshold(0.7))
	assert.Equal(t, ThresholdDynamic, DynamicThreshold().Mode)
}

func TestEvaluationResult_MeanString(t *testing.T) {
	assert.Equal(t, "0.75", EvaluationResult{MeanScore: 0.75, Defined: true}.MeanString())
	assert.Equal(t, "undefined", EvaluationResult{}.MeanString())
}

func TestEvaluationResult_JSON(t *testing.T) {
	defined := EvaluationResult{MeanScore: 0.5, Defined: true, PredictionRate: 0.25, Predicted: 1, Total: 4}
	b, err := json.Marshal(defined)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"mean_score":0.5`)

	var back EvaluationResult
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, defined, back)

	b, err = json.Marshal(EvaluationResult{Total: 2})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"mean_score":null`)

	back = EvaluationResult{MeanScore: 9}
	require.NoError(t, json.Unmarshal(b, &back))
	assert.False(t, back.Defined)
	assert.Zero(t, back.MeanScore)
}

func TestPFM_Clone(t *testing.T) {
	p := PFM{Name: "p", Columns: []Column{{1, 0, 0, 0}, {0, 0.5, 0.5, 0}}}
	c := p.Clone()
	c.Columns[0][0] = 0

	assert.InDelta(t, 1.0, p.Columns[0][0], 1e-12)
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Empty())
	assert.True(t, PFM{}.Empty())
	assert.InDelta(t, 1.0, p.Columns[1].Sum(), 1e-12)
	assert.Equal(t, 100, PercentColumn{25, 25, 25, 25}.Sum())
}

func TestAlignMode_Valid(t *testing.T) {
	assert.True(t, AlignGlobal.Valid())
	assert.True(t, AlignLocal.Valid())
	assert.False(t, AlignMode("semi").Valid())
}

func TestIsGap(t *testing.T) {
	for _, r := range []byte{'-', '.', '~'} {
		assert.True(t, IsGap(r), string(r))
	}
	assert.False(t, IsGap('A'))
}

func TestSentinelsWrap(t *testing.T) {
	err := eris.Wrap(ErrLengthMismatch, "evaluate")
	assert.True(t, eris.Is(err, ErrLengthMismatch))
	assert.False(t, eris.Is(err, ErrInvalidConfig))
}
