package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pfmtransfer/internal/model"
)

// predictionRow is a prediction record with its nested values encoded as
// JSON text.
type predictionRow struct {
	selection []byte
	profile   []byte
	removed   []byte
}

func encodePrediction(rec *model.PredictionRecord) (predictionRow, error) {
	var row predictionRow
	var err error
	if row.selection, err = json.Marshal(rec.Selection); err != nil {
		return row, eris.Wrap(err, "store: marshal selection")
	}
	if rec.Profile != nil {
		if row.profile, err = json.Marshal(rec.Profile); err != nil {
			return row, eris.Wrap(err, "store: marshal profile")
		}
	}
	removed := rec.Removed
	if removed == nil {
		removed = []string{}
	}
	if row.removed, err = json.Marshal(removed); err != nil {
		return row, eris.Wrap(err, "store: marshal removed")
	}
	return row, nil
}

func decodePrediction(rec *model.PredictionRecord, row predictionRow) error {
	if err := json.Unmarshal(row.selection, &rec.Selection); err != nil {
		return eris.Wrap(err, "store: unmarshal selection")
	}
	if len(row.profile) > 0 {
		rec.Profile = &model.PFM{}
		if err := json.Unmarshal(row.profile, rec.Profile); err != nil {
			return eris.Wrap(err, "store: unmarshal profile")
		}
	}
	if len(row.removed) > 0 {
		if err := json.Unmarshal(row.removed, &rec.Removed); err != nil {
			return eris.Wrap(err, "store: unmarshal removed")
		}
		if len(rec.Removed) == 0 {
			rec.Removed = nil
		}
	}
	return nil
}
