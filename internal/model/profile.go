package model

// Bases is the fixed column order of every profile matrix.
const Bases = "ACGT"

// Column is one PFM position in probability form, indexed A,C,G,T.
type Column [4]float64

// Sum returns the total weight of the column.
func (c Column) Sum() float64 {
	return c[0] + c[1] + c[2] + c[3]
}

// PFM is a position frequency matrix in probability form.
type PFM struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []Column `json:"columns" yaml:"columns"`
}

// Len returns the number of positions.
func (p PFM) Len() int {
	return len(p.Columns)
}

// Empty reports whether the matrix has no positions.
func (p PFM) Empty() bool {
	return len(p.Columns) == 0
}

// Clone returns a deep copy of p.
func (p PFM) Clone() PFM {
	cols := make([]Column, len(p.Columns))
	copy(cols, p.Columns)
	return PFM{Name: p.Name, Columns: cols}
}

// PercentColumn is one PFM position in percentage form. A normalized
// column sums to exactly 100.
type PercentColumn [4]int

// Sum returns the integer total of the column.
func (c PercentColumn) Sum() int {
	return c[0] + c[1] + c[2] + c[3]
}

// PercentPFM is a position frequency matrix in percentage form with the
// derived consensus string.
type PercentPFM struct {
	Name      string          `json:"name" yaml:"name"`
	Columns   []PercentColumn `json:"columns" yaml:"columns"`
	Consensus string          `json:"consensus" yaml:"consensus"`
}
