package oracle

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pfmtransfer/internal/model"
	"github.com/sells-group/pfmtransfer/internal/profile"
)

// ConsensusName is the name given to merged profiles.
const ConsensusName = "consensus"

// Average merges profiles by placing each one onto the running consensus at
// its best ColumnDot offset and averaging the overlapping columns. The
// result spans the first profile's columns.
type Average struct {
	Placement ColumnDot
}

// Merge implements consensus.MergeOracle.
func (m Average) Merge(ctx context.Context, profiles []model.PFM) (model.PercentPFM, error) {
	if len(profiles) == 0 {
		return model.PercentPFM{}, eris.New("oracle: merge: no profiles")
	}
	if profiles[0].Empty() {
		return model.PercentPFM{}, eris.Wrapf(model.ErrDegenerateProfile, "oracle: merge: %q is empty", profiles[0].Name)
	}

	width := profiles[0].Len()
	sums := make([]model.Column, width)
	counts := make([]int, width)
	for i, c := range profiles[0].Columns {
		sums[i] = c
		counts[i] = 1
	}

	for _, p := range profiles[1:] {
		if err := ctx.Err(); err != nil {
			return model.PercentPFM{}, err
		}
		if p.Empty() {
			return model.PercentPFM{}, eris.Wrapf(model.ErrDegenerateProfile, "oracle: merge: %q is empty", p.Name)
		}

		cols := p.Columns
		pl := m.Placement.place(average(sums, counts), cols)
		if pl.reversed {
			cols = ReverseComplement(cols)
		}
		for j, c := range cols {
			i := j + pl.offset
			if i < 0 || i >= width {
				continue
			}
			for k := range c {
				sums[i][k] += c[k]
			}
			counts[i]++
		}
		zap.L().Debug("oracle: merged profile",
			zap.String("profile", p.Name),
			zap.Int("offset", pl.offset),
			zap.Bool("reversed", pl.reversed))
	}

	out, err := profile.ToPercentPFM(model.PFM{Name: ConsensusName, Columns: average(sums, counts)})
	if err != nil {
		return model.PercentPFM{}, eris.Wrap(err, "oracle: merge")
	}
	return out, nil
}

// average divides each column sum by its count and rescales it to sum to 1.
func average(sums []model.Column, counts []int) []model.Column {
	out := make([]model.Column, len(sums))
	for i, s := range sums {
		total := s.Sum()
		if total <= 0 || counts[i] == 0 {
			out[i] = s
			continue
		}
		for k := range s {
			out[i][k] = s[k] / total
		}
	}
	return out
}
