// Package dataset reads transfer datasets and request files and writes
// prediction and sweep reports.
package dataset

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pfmtransfer/internal/model"
	"github.com/sells-group/pfmtransfer/internal/pipeline"
	"github.com/sells-group/pfmtransfer/internal/profile"
)

// Dataset is a named collection of queries, each with scored candidates and
// an optional reference profile.
type Dataset struct {
	Name    string
	Queries []pipeline.Query
}

// References returns the reference profile of every query, in order.
func (d Dataset) References() ([]model.PFM, error) {
	out := make([]model.PFM, len(d.Queries))
	for i, q := range d.Queries {
		if q.Reference == nil {
			return nil, eris.Errorf("dataset: query %s has no reference profile", q.Name)
		}
		out[i] = *q.Reference
	}
	return out, nil
}

// ProfileSpec is a profile as written in a dataset file. Columns are in
// probability form unless Percent or Counts is set.
type ProfileSpec struct {
	Name    string       `yaml:"name" json:"name"`
	Percent bool         `yaml:"percent,omitempty" json:"percent,omitempty"`
	Counts  bool         `yaml:"counts,omitempty" json:"counts,omitempty"`
	Columns [][4]float64 `yaml:"columns" json:"columns"`
}

// CandidateSpec is a candidate as written in a dataset file.
type CandidateSpec struct {
	Name     string       `yaml:"name" json:"name"`
	Score    float64      `yaml:"score" json:"score"`
	Residues string       `yaml:"residues,omitempty" json:"residues,omitempty"`
	Profile  *ProfileSpec `yaml:"profile" json:"profile"`
}

// QuerySpec is a query as written in a dataset file.
type QuerySpec struct {
	Name       string          `yaml:"name" json:"name"`
	Class      string          `yaml:"class" json:"class"`
	Residues   string          `yaml:"residues,omitempty" json:"residues,omitempty"`
	Reference  *ProfileSpec    `yaml:"reference,omitempty" json:"reference,omitempty"`
	Candidates []CandidateSpec `yaml:"candidates" json:"candidates"`
}

type fileSpec struct {
	Name    string      `yaml:"name"`
	Queries []QuerySpec `yaml:"queries"`
}

// LoadFile reads a YAML or JSON dataset file. The dataset name defaults to
// the file's base name.
func LoadFile(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, eris.Wrapf(err, "dataset: read %s", path)
	}
	ds, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Dataset{}, eris.Wrapf(err, "dataset: %s", path)
	}
	if ds.Name == "" {
		ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return ds, nil
}

// Parse decodes a dataset document. JSON input is accepted as YAML.
func Parse(r io.Reader) (Dataset, error) {
	var spec fileSpec
	if err := yaml.NewDecoder(r).Decode(&spec); err != nil {
		if err == io.EOF {
			return Dataset{}, eris.New("dataset: empty document")
		}
		return Dataset{}, eris.Wrap(err, "dataset: parse")
	}

	ds := Dataset{Name: spec.Name, Queries: make([]pipeline.Query, 0, len(spec.Queries))}
	for _, qs := range spec.Queries {
		q, err := qs.Query()
		if err != nil {
			return Dataset{}, err
		}
		ds.Queries = append(ds.Queries, q)
	}
	return ds, nil
}

// Query converts the spec into a pipeline query.
func (qs QuerySpec) Query() (pipeline.Query, error) {
	if qs.Name == "" {
		return pipeline.Query{}, eris.New("dataset: query without name")
	}
	q := pipeline.Query{
		Name:       qs.Name,
		Class:      qs.Class,
		Sequence:   model.Sequence{Name: qs.Name, Residues: qs.Residues},
		Candidates: make([]pipeline.Candidate, 0, len(qs.Candidates)),
	}
	if qs.Reference != nil {
		ref, err := qs.Reference.PFM(qs.Name)
		if err != nil {
			return pipeline.Query{}, eris.Wrapf(err, "dataset: query %s reference", qs.Name)
		}
		q.Reference = &ref
	}

	for _, cs := range qs.Candidates {
		if cs.Name == "" {
			return pipeline.Query{}, eris.Errorf("dataset: query %s: candidate without name", qs.Name)
		}
		c := pipeline.Candidate{
			Name:     cs.Name,
			Score:    cs.Score,
			Sequence: model.Sequence{Name: cs.Name, Residues: cs.Residues},
		}
		if cs.Profile != nil {
			p, err := cs.Profile.PFM(cs.Name)
			if err != nil {
				return pipeline.Query{}, eris.Wrapf(err, "dataset: query %s candidate %s", qs.Name, cs.Name)
			}
			c.Profile = p
		}
		q.Candidates = append(q.Candidates, c)
	}
	return q, nil
}

// PFM converts the spec into a probability-form profile. fallbackName is
// used when the spec has no name of its own.
func (ps ProfileSpec) PFM(fallbackName string) (model.PFM, error) {
	name := ps.Name
	if name == "" {
		name = fallbackName
	}

	switch {
	case ps.Percent && ps.Counts:
		return model.PFM{}, eris.Errorf("profile %s: percent and counts are exclusive", name)
	case ps.Counts:
		return profile.FromCounts(name, ps.Columns)
	case ps.Percent:
		pp := model.PercentPFM{Name: name, Columns: make([]model.PercentColumn, len(ps.Columns))}
		for i, col := range ps.Columns {
			for k, v := range col {
				if v != math.Trunc(v) {
					return model.PFM{}, eris.Errorf("profile %s: position %d: percentage %g is not an integer", name, i+1, v)
				}
				pp.Columns[i][k] = int(v)
			}
		}
		return profile.ToPFM(pp)
	default:
		p := model.PFM{Name: name, Columns: make([]model.Column, len(ps.Columns))}
		for i, col := range ps.Columns {
			p.Columns[i] = model.Column(col)
		}
		if _, err := profile.ToPercentPFM(p); err != nil {
			if eris.Is(err, model.ErrUnnormalizedColumn) {
				return model.PFM{}, eris.Wrapf(err, "profile %s: probability columns must sum to 1 (set counts: true for raw counts)", name)
			}
			return model.PFM{}, eris.Wrapf(err, "profile %s", name)
		}
		return p, nil
	}
}

// ParseProfile decodes a single profile document.
func ParseProfile(r io.Reader) (ProfileSpec, error) {
	var ps ProfileSpec
	if err := yaml.NewDecoder(r).Decode(&ps); err != nil {
		return ProfileSpec{}, eris.Wrap(err, "dataset: parse profile")
	}
	if len(ps.Columns) == 0 {
		return ProfileSpec{}, eris.New("dataset: profile has no columns")
	}
	return ps, nil
}

// Normalized is a profile in both forms.
type Normalized struct {
	Probability model.PFM        `json:"probability"`
	Percent     model.PercentPFM `json:"percent"`
}

// Normalize converts ps to probability form and back to percentage form,
// so percentage input comes back summing to exactly 100 per column.
func (ps ProfileSpec) Normalize(fallbackName string) (Normalized, error) {
	p, err := ps.PFM(fallbackName)
	if err != nil {
		return Normalized{}, err
	}
	pp, err := profile.ToPercentPFM(p)
	if err != nil {
		return Normalized{}, err
	}
	return Normalized{Probability: p, Percent: pp}, nil
}
