// Package model defines the value types shared by the profile transfer engine.
package model

// Sequence is a named residue string (protein or DNA).
type Sequence struct {
	Name     string `json:"name" yaml:"name"`
	Residues string `json:"residues" yaml:"residues"`
}

// Len returns the number of residues in the sequence.
func (s Sequence) Len() int {
	return len(s.Residues)
}

// AlignMode selects global or local pairwise alignment.
type AlignMode string

const (
	AlignGlobal AlignMode = "global"
	AlignLocal  AlignMode = "local"
)

// Valid reports whether m is a known alignment mode.
func (m AlignMode) Valid() bool {
	return m == AlignGlobal || m == AlignLocal
}

// Match markers used in AlignmentTrace.Markers.
const (
	MarkerIdentity = '|'
	MarkerSimilar  = ':'
	MarkerWeak     = '.'
	MarkerNone     = ' '
)

// AlignmentTrace is the structured output of a pairwise alignment.
// Query, Target and Markers are column-aligned and must be the same length.
type AlignmentTrace struct {
	Query   string  `json:"query" yaml:"query"`
	Target  string  `json:"target" yaml:"target"`
	Markers string  `json:"markers" yaml:"markers"`
	Score   float64 `json:"score" yaml:"score"`
}

// IsGap reports whether r is a gap or terminal pad symbol in an aligned string.
func IsGap(r byte) bool {
	return r == '-' || r == '.' || r == '~'
}
