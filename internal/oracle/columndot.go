// Package oracle provides the built-in and command-backed implementations
// of the aligner, classifier, distance and merge capabilities the transfer
// engine depends on.
package oracle

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pfmtransfer/internal/model"
)

// DefaultMinOverlap is the smallest number of overlapping columns an offset
// must have to be considered.
const DefaultMinOverlap = 4

// ColumnDot compares two profiles by the best ungapped placement of one
// against the other, scoring each placement as the sum of per-column dot
// products. The score is symmetric and positive for non-empty profiles.
type ColumnDot struct {
	MinOverlap  int
	BothStrands bool
}

// Compare implements consensus.DistanceOracle.
func (d ColumnDot) Compare(ctx context.Context, a, b model.PFM) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if a.Empty() || b.Empty() {
		return 0, eris.Wrapf(model.ErrDegenerateProfile, "oracle: compare %q with %q: empty profile", a.Name, b.Name)
	}
	p := d.place(a.Columns, b.Columns)
	return p.score, nil
}

// placement is the best alignment of b onto a: b's column j sits on a's
// column j+offset, optionally after reverse-complementing b.
type placement struct {
	offset   int
	reversed bool
	score    float64
}

func (d ColumnDot) place(a, b []model.Column) placement {
	best := bestOffset(a, b, d.minOverlap(len(a), len(b)))
	if d.BothStrands {
		rc := bestOffset(a, ReverseComplement(b), d.minOverlap(len(a), len(b)))
		if rc.score > best.score {
			rc.reversed = true
			best = rc
		}
	}
	return best
}

func (d ColumnDot) minOverlap(la, lb int) int {
	n := d.MinOverlap
	if n <= 0 {
		n = DefaultMinOverlap
	}
	return min(n, la, lb)
}

func bestOffset(a, b []model.Column, minOverlap int) placement {
	best := placement{score: math.Inf(-1)}
	for off := -(len(b) - minOverlap); off <= len(a)-minOverlap; off++ {
		var s float64
		for j := range b {
			i := j + off
			if i < 0 || i >= len(a) {
				continue
			}
			s += dot(a[i], b[j])
		}
		if s > best.score {
			best = placement{offset: off, score: s}
		}
	}
	return best
}

func dot(x, y model.Column) float64 {
	return x[0]*y[0] + x[1]*y[1] + x[2]*y[2] + x[3]*y[3]
}

// ReverseComplement returns the columns of the opposite strand: the order
// is reversed and each column maps A,C,G,T to T,G,C,A.
func ReverseComplement(cols []model.Column) []model.Column {
	out := make([]model.Column, len(cols))
	for i, c := range cols {
		out[len(cols)-1-i] = model.Column{c[3], c[2], c[1], c[0]}
	}
	return out
}
