package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pfmtransfer/internal/dataset"
	"github.com/sells-group/pfmtransfer/internal/model"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Predict every query of a dataset and score against the references",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("dataset")
		asJSON, _ := cmd.Flags().GetBool("json")

		ds, err := dataset.LoadFile(path)
		if err != nil {
			return err
		}
		refs, err := ds.References()
		if err != nil {
			return err
		}

		env, err := initTransfer(ctx, cfg, "evaluate", false)
		if err != nil {
			return err
		}
		defer env.Close()

		preds, err := env.predictAll(ctx, ds.Queries, env.Threshold)
		if err != nil {
			return eris.Wrap(err, "evaluate")
		}
		predicted := make([]*model.PFM, len(preds))
		for i, p := range preds {
			predicted[i] = p.Profile()
		}

		res, err := env.Evaluator.Evaluate(ctx, predicted, refs)
		if err != nil {
			return eris.Wrap(err, "evaluate")
		}
		zap.L().Info("evaluate complete",
			zap.String("dataset", ds.Name),
			zap.String("mean_score", res.MeanString()),
			zap.Float64("prediction_rate", res.PredictionRate))

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Printf("Dataset:         %s\n", ds.Name)
		fmt.Printf("Mean score:      %s\n", res.MeanString())
		fmt.Printf("Prediction rate: %.4f (%d/%d)\n", res.PredictionRate, res.Predicted, res.Total)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().String("dataset", "", "dataset file with reference profiles")
	evaluateCmd.Flags().Bool("json", false, "print the result as JSON")
	_ = evaluateCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(evaluateCmd)
}
