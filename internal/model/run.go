package model

import "time"

// PredictionRecord is a persisted transfer result for one query.
type PredictionRecord struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Selection Selection `json:"selection"`
	Profile   *PFM      `json:"profile,omitempty"`
	Removed   []string  `json:"removed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SweepRecord is a persisted threshold sweep over a dataset.
type SweepRecord struct {
	ID        string       `json:"id"`
	Dataset   string       `json:"dataset"`
	Points    []SweepPoint `json:"points"`
	CreatedAt time.Time    `json:"created_at"`
}
