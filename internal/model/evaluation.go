package model

import "encoding/json"

// EvaluationResult summarizes transfer quality over a set of factors.
// When Defined is false the mean score was Infinity or NaN and must be
// reported as undefined.
type EvaluationResult struct {
	MeanScore      float64 `json:"-"`
	Defined        bool    `json:"defined"`
	PredictionRate float64 `json:"prediction_rate"`
	Predicted      int     `json:"predicted"`
	Total          int     `json:"total"`
}

// MeanString renders the mean score or "undefined".
func (r EvaluationResult) MeanString() string {
	if !r.Defined {
		return "undefined"
	}
	b, _ := json.Marshal(r.MeanScore)
	return string(b)
}

// MarshalJSON emits mean_score as null when the score is undefined.
func (r EvaluationResult) MarshalJSON() ([]byte, error) {
	type alias EvaluationResult
	var mean *float64
	if r.Defined {
		mean = &r.MeanScore
	}
	return json.Marshal(struct {
		alias
		MeanScore *float64 `json:"mean_score"`
	}{alias(r), mean})
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (r *EvaluationResult) UnmarshalJSON(data []byte) error {
	type alias EvaluationResult
	aux := struct {
		*alias
		MeanScore *float64 `json:"mean_score"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.MeanScore = 0
	if aux.MeanScore != nil {
		r.MeanScore = *aux.MeanScore
	}
	return nil
}

// SweepPoint is one evaluation at a fixed static cutoff.
type SweepPoint struct {
	Threshold float64          `json:"threshold"`
	Result    EvaluationResult `json:"result"`
}
