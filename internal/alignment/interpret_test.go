package alignment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pfmtransfer/internal/model"
)

type mockAligner struct {
	mock.Mock
}

func (m *mockAligner) Align(ctx context.Context, a, b model.Sequence, sm *SubstitutionMatrix, mode model.AlignMode) (model.AlignmentTrace, error) {
	args := m.Called(ctx, a.Name, b.Name, mode)
	return args.Get(0).(model.AlignmentTrace), args.Error(1)
}

var sampleTrace = model.AlignmentTrace{
	Query:   "ACDE-FG",
	Target:  "ACNEKFG",
	Markers: "|| | ||",
	Score:   27,
}

func TestBLOSUM62(t *testing.T) {
	m := BLOSUM62()
	assert.Equal(t, "BLOSUM62", m.Name)
	assert.Len(t, m.Letters(), 24)
	assert.Equal(t, 4, m.Score('A', 'A'))
	assert.Equal(t, 11, m.Score('W', 'W'))
	assert.Equal(t, 1, m.Score('D', 'N'))
	assert.Equal(t, m.Score('N', 'D'), m.Score('D', 'N'))
	assert.Equal(t, 4, m.Score('a', 'a'), "lookups are case-insensitive")
	assert.Equal(t, -4, m.Score('A', 'J'), "unknown residue scores as '*'")
	assert.Same(t, m, BLOSUM62())
}

func TestParseMatrix(t *testing.T) {
	src := `# tiny
   A  C
A  2 -1
C -1  3
`
	m, err := ParseMatrix(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "AC", m.Letters())
	assert.Equal(t, 3, m.Score('C', 'C'))
	assert.Equal(t, -1, m.Score('A', 'c'))
}

func TestParseMatrix_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", "# nothing\n"},
		{"short row", "  A C\nA 1\nC 1 1\n"},
		{"bad score", "  A C\nA 1 x\nC 1 1\n"},
		{"missing row", "  A C\nA 1 0\n"},
		{"unknown row", "  A C\nA 1 0\nG 0 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMatrix(strings.NewReader(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestSimilarityRatio(t *testing.T) {
	got, err := SimilarityRatio(sampleTrace)
	require.NoError(t, err)
	assert.InDelta(t, 5.0/6.0, got, 1e-12)
}

func TestSimilarityRatio_ExcludesTerminalPads(t *testing.T) {
	trace := model.AlignmentTrace{
		Query:   "~~ACG",
		Target:  "TTACG",
		Markers: "  |||",
	}
	got, err := SimilarityRatio(trace)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-12)
}

func TestToleranceIdentity(t *testing.T) {
	tests := []struct {
		name      string
		tolerance int
		want      float64
	}{
		{"D/N counted at tolerance 1", 1, 1.0},
		{"D/N not counted at tolerance 2", 2, 5.0 / 6.0},
		{"everything counted at -4", -4, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToleranceIdentity(sampleTrace, BLOSUM62(), tt.tolerance)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestToleranceIdentity_NeverBelowSimilarity(t *testing.T) {
	sim, err := SimilarityRatio(sampleTrace)
	require.NoError(t, err)
	for tol := -4; tol <= 11; tol++ {
		id, err := ToleranceIdentity(sampleTrace, BLOSUM62(), tol)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, id, sim)
	}
}

func TestInterpret_MalformedTrace(t *testing.T) {
	tests := []struct {
		name  string
		trace model.AlignmentTrace
	}{
		{"short markers", model.AlignmentTrace{Query: "ACG", Target: "ACG", Markers: "||"}},
		{"short target", model.AlignmentTrace{Query: "ACG", Target: "AC", Markers: "|||"}},
		{"all gaps", model.AlignmentTrace{Query: "---", Target: "ACG", Markers: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SimilarityRatio(tt.trace)
			assert.True(t, eris.Is(err, model.ErrMalformedTrace))

			_, err = ToleranceIdentity(tt.trace, BLOSUM62(), 1)
			assert.True(t, eris.Is(err, model.ErrMalformedTrace))
		})
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(30, 40, 90)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-12)

	rev, err := Normalize(30, 90, 40)
	require.NoError(t, err)
	assert.Equal(t, got, rev)

	self, err := Normalize(37.3, 37.3, 37.3)
	require.NoError(t, err)
	assert.Equal(t, 1.0, self)
}

func TestNormalize_Degenerate(t *testing.T) {
	for _, self := range [][2]float64{{0, 10}, {10, 0}, {-1, 10}} {
		_, err := Normalize(5, self[0], self[1])
		assert.True(t, eris.Is(err, model.ErrDegenerateSequence), "self-scores %v", self)
	}
}

func TestSelfNormalized(t *testing.T) {
	ctx := context.Background()
	a := model.Sequence{Name: "a", Residues: "MKV"}
	b := model.Sequence{Name: "b", Residues: "MRV"}

	al := new(mockAligner)
	al.On("Align", ctx, "a", "b", model.AlignGlobal).Return(model.AlignmentTrace{Score: 8}, nil)
	al.On("Align", ctx, "b", "a", model.AlignGlobal).Return(model.AlignmentTrace{Score: 8}, nil)
	al.On("Align", ctx, "a", "a", model.AlignGlobal).Return(model.AlignmentTrace{Score: 16}, nil)
	al.On("Align", ctx, "b", "b", model.AlignGlobal).Return(model.AlignmentTrace{Score: 16}, nil)

	ab, err := SelfNormalized(ctx, al, a, b, BLOSUM62(), model.AlignGlobal)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ab, 1e-12)

	ba, err := SelfNormalized(ctx, al, b, a, BLOSUM62(), model.AlignGlobal)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)

	aa, err := SelfNormalized(ctx, al, a, a, BLOSUM62(), model.AlignGlobal)
	require.NoError(t, err)
	assert.Equal(t, 1.0, aa)
}

func TestSelfNormalized_EmptySequence(t *testing.T) {
	al := new(mockAligner)
	_, err := SelfNormalized(context.Background(), al,
		model.Sequence{Name: "empty"}, model.Sequence{Name: "b", Residues: "MK"},
		BLOSUM62(), model.AlignGlobal)
	assert.True(t, eris.Is(err, model.ErrDegenerateSequence))
	al.AssertNotCalled(t, "Align")
}

func TestSelfNormalized_ZeroSelfScore(t *testing.T) {
	ctx := context.Background()
	al := new(mockAligner)
	al.On("Align", ctx, mock.Anything, mock.Anything, model.AlignLocal).Return(model.AlignmentTrace{Score: 0}, nil)

	_, err := SelfNormalized(ctx, al,
		model.Sequence{Name: "x", Residues: "XX"}, model.Sequence{Name: "y", Residues: "XX"},
		BLOSUM62(), model.AlignLocal)
	assert.True(t, eris.Is(err, model.ErrDegenerateSequence))
}

func TestSelfNormalized_AlignerError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("needle exited 1")
	al := new(mockAligner)
	al.On("Align", ctx, "a", "b", model.AlignGlobal).Return(model.AlignmentTrace{}, boom)

	_, err := SelfNormalized(ctx, al,
		model.Sequence{Name: "a", Residues: "M"}, model.Sequence{Name: "b", Residues: "M"},
		BLOSUM62(), model.AlignGlobal)
	assert.ErrorIs(t, err, boom)
	al.AssertNumberOfCalls(t, "Align", 1)
}

func TestInterpreter_Features(t *testing.T) {
	ctx := context.Background()
	q := model.Sequence{Name: "q", Residues: "ACDEFG"}
	tg := model.Sequence{Name: "t", Residues: "ACNEKFG"}

	al := new(mockAligner)
	al.On("Align", ctx, "q", "t", model.AlignGlobal).Return(sampleTrace, nil)
	al.On("Align", ctx, "q", "q", model.AlignGlobal).Return(model.AlignmentTrace{Score: 36}, nil)
	al.On("Align", ctx, "t", "t", model.AlignGlobal).Return(model.AlignmentTrace{Score: 36}, nil)

	in := NewInterpreter(al, nil, DefaultTolerance, "")
	f, err := in.Features(ctx, q, tg)
	require.NoError(t, err)
	assert.InDelta(t, 5.0/6.0, f.Similarity, 1e-12)
	assert.InDelta(t, 1.0, f.Identity, 1e-12)
	assert.InDelta(t, 0.75, f.Normalized, 1e-12)
	assert.Equal(t, []float64{f.Similarity, f.Identity, f.Normalized}, f.Vector())
	al.AssertExpectations(t)
}
