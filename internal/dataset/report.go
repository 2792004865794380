package dataset

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pfmtransfer/internal/model"
	"github.com/sells-group/pfmtransfer/internal/pipeline"
)

// PredictionReport is the JSON form of one prediction.
type PredictionReport struct {
	Query     string          `json:"query"`
	Found     bool            `json:"found"`
	Message   string          `json:"message,omitempty"`
	Selection model.Selection `json:"selection"`
	Profile   *model.PFM      `json:"profile,omitempty"`
	Kept      []string        `json:"kept,omitempty"`
	Removed   []string        `json:"removed,omitempty"`
	Fallback  bool            `json:"fallback,omitempty"`
}

// Report converts a prediction into its JSON form.
func Report(p pipeline.Prediction) PredictionReport {
	r := PredictionReport{
		Query:     p.Query,
		Found:     p.Selection.Found(),
		Message:   p.Selection.NoMatch.Message(),
		Selection: p.Selection,
		Profile:   p.Profile(),
	}
	if p.Consensus != nil {
		r.Kept = p.Consensus.Kept
		r.Removed = p.Consensus.Removed
		r.Fallback = p.Consensus.Fallback
	}
	return r
}

// WritePredictions writes predictions as an indented JSON array.
func WritePredictions(w io.Writer, preds []pipeline.Prediction) error {
	reports := make([]PredictionReport, len(preds))
	for i, p := range preds {
		reports[i] = Report(p)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return eris.Wrap(err, "dataset: write predictions")
	}
	return nil
}

// WriteSweepJSON writes sweep points as an indented JSON array.
func WriteSweepJSON(w io.Writer, points []model.SweepPoint) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(points); err != nil {
		return eris.Wrap(err, "dataset: write sweep")
	}
	return nil
}

// WriteSweepCSV writes one row per sweep point. An undefined mean score is
// written as "undefined".
func WriteSweepCSV(w io.Writer, points []model.SweepPoint) error {
	cw := csv.NewWriter(w)

	header := []string{"threshold", "mean_score", "prediction_rate", "predicted", "total"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "dataset: write CSV header")
	}
	for _, p := range points {
		row := []string{
			strconv.FormatFloat(p.Threshold, 'f', -1, 64),
			p.Result.MeanString(),
			strconv.FormatFloat(p.Result.PredictionRate, 'f', 4, 64),
			strconv.Itoa(p.Result.Predicted),
			strconv.Itoa(p.Result.Total),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "dataset: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "dataset: flush CSV")
}
