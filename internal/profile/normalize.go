// Package profile converts position frequency matrices between probability
// and percentage form.
package profile

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pfmtransfer/internal/model"
)

// Precision is the number of decimal digits kept in probability form.
const Precision = 4

// SumTolerance is how far a probability column's sum may stray from 1.
const SumTolerance = 1e-3

// ToPercentageForm rounds each base to an integer percentage and forces the
// column to sum to exactly 100 by adjusting only the absorption base, the
// first base (A,C,G,T order) with the largest unrounded percentage. The
// column must already sum to 1 within SumTolerance.
func ToPercentageForm(c model.Column) (model.PercentColumn, byte, error) {
	if err := checkColumn(c); err != nil {
		return model.PercentColumn{}, 0, err
	}
	if sum := c.Sum(); math.Abs(sum-1) > SumTolerance {
		return model.PercentColumn{}, 0, eris.Wrapf(model.ErrUnnormalizedColumn, "profile: column sums to %g", sum)
	}

	var out model.PercentColumn
	absorb := 0
	sum := 0
	for i, p := range c {
		pct := p * 100
		if pct > c[absorb]*100 {
			absorb = i
		}
		out[i] = int(math.Round(pct))
		sum += out[i]
	}

	for sum > 100 {
		out[absorb]--
		sum--
	}
	for sum < 100 {
		out[absorb]++
		sum++
	}
	return out, Consensus(out), nil
}

// ToProbabilityForm divides each base by the column's integer sum, which is
// not assumed to be 100, and rounds to Precision decimal digits.
func ToProbabilityForm(c model.PercentColumn) (model.Column, error) {
	sum := 0
	for i, v := range c {
		if v < 0 {
			return model.Column{}, eris.Errorf("profile: negative count %d for base %c", v, model.Bases[i])
		}
		sum += v
	}
	if sum == 0 {
		return model.Column{}, eris.Wrap(model.ErrEmptyColumn, "profile: percentage column sums to zero")
	}

	var out model.Column
	for i, v := range c {
		out[i] = round4(float64(v) / float64(sum))
	}
	return out, nil
}

// Consensus returns the base with the highest percentage; the first maximum
// in A,C,G,T order wins ties.
func Consensus(c model.PercentColumn) byte {
	best := 0
	for i := 1; i < len(c); i++ {
		if c[i] > c[best] {
			best = i
		}
	}
	return model.Bases[best]
}

// ToPercentPFM converts every column of p to percentage form.
func ToPercentPFM(p model.PFM) (model.PercentPFM, error) {
	out := model.PercentPFM{Name: p.Name, Columns: make([]model.PercentColumn, len(p.Columns))}
	var consensus strings.Builder
	for i, c := range p.Columns {
		pc, letter, err := ToPercentageForm(c)
		if err != nil {
			return model.PercentPFM{}, eris.Wrapf(err, "profile: %s position %d", p.Name, i+1)
		}
		out.Columns[i] = pc
		consensus.WriteByte(letter)
	}
	out.Consensus = consensus.String()
	return out, nil
}

// ToPFM converts every column of p to probability form.
func ToPFM(p model.PercentPFM) (model.PFM, error) {
	out := model.PFM{Name: p.Name, Columns: make([]model.Column, len(p.Columns))}
	for i, c := range p.Columns {
		col, err := ToProbabilityForm(c)
		if err != nil {
			return model.PFM{}, eris.Wrapf(err, "profile: %s position %d", p.Name, i+1)
		}
		out.Columns[i] = col
	}
	return out, nil
}

// FromCounts scales raw count columns to probability form without rounding.
func FromCounts(name string, counts [][4]float64) (model.PFM, error) {
	out := model.PFM{Name: name, Columns: make([]model.Column, len(counts))}
	for i, row := range counts {
		c := model.Column(row)
		if err := checkColumn(c); err != nil {
			return model.PFM{}, eris.Wrapf(err, "profile: %s position %d", name, i+1)
		}
		sum := c.Sum()
		for j := range c {
			out.Columns[i][j] = c[j] / sum
		}
	}
	return out, nil
}

// FormatColumn renders a probability column with Precision decimal digits,
// tab separated.
func FormatColumn(c model.Column) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.FormatFloat(v, 'f', Precision, 64)
	}
	return strings.Join(parts, "\t")
}

func checkColumn(c model.Column) error {
	for i, v := range c {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Errorf("profile: invalid weight %g for base %c", v, model.Bases[i])
		}
	}
	if c.Sum() == 0 {
		return eris.Wrap(model.ErrEmptyColumn, "profile: column sums to zero")
	}
	return nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
