// Package pipeline runs one transfer request: candidate scoring, match
// selection and consensus building, strictly in sequence.
package pipeline

import (
	"github.com/sells-group/pfmtransfer/internal/model"
)

// Candidate is a characterized factor that may donate its profile.
type Candidate struct {
	Name     string         `json:"name" yaml:"name"`
	Score    float64        `json:"score" yaml:"score"`
	Sequence model.Sequence `json:"sequence,omitempty" yaml:"sequence"`
	Profile  model.PFM      `json:"profile" yaml:"profile"`
}

// Query is a factor without binding data and its scored candidates.
// An empty Class means the query could not be classified upstream.
type Query struct {
	Name       string         `json:"name" yaml:"name"`
	Class      string         `json:"class" yaml:"class"`
	Sequence   model.Sequence `json:"sequence,omitempty" yaml:"sequence"`
	Reference  *model.PFM     `json:"reference,omitempty" yaml:"reference"`
	Candidates []Candidate    `json:"candidates" yaml:"candidates"`
}

// Matches returns the candidates as scored matches.
func (q Query) Matches() []model.CandidateMatch {
	out := make([]model.CandidateMatch, len(q.Candidates))
	for i, c := range q.Candidates {
		out[i] = model.CandidateMatch{Name: c.Name, Score: c.Score}
	}
	return out
}

// Candidate returns the named candidate. When the name repeats, the
// highest-scoring entry wins and the first one wins ties, the same entry
// the selector keeps.
func (q Query) Candidate(name string) (Candidate, bool) {
	var best Candidate
	found := false
	for _, c := range q.Candidates {
		if c.Name != name {
			continue
		}
		if !found || c.Score > best.Score {
			best = c
			found = true
		}
	}
	return best, found
}
