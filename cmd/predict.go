package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pfmtransfer/internal/dataset"
	"github.com/sells-group/pfmtransfer/internal/pipeline"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Transfer profiles to the queries of a dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("dataset")
		only, _ := cmd.Flags().GetString("query")
		output, _ := cmd.Flags().GetString("output")
		save, _ := cmd.Flags().GetBool("save")

		ds, err := dataset.LoadFile(path)
		if err != nil {
			return err
		}
		queries := ds.Queries
		if only != "" {
			queries = filterQueries(queries, only)
			if len(queries) == 0 {
				return eris.Errorf("predict: query %q not in dataset %s", only, ds.Name)
			}
		}

		env, err := initTransfer(ctx, cfg, "predict", save)
		if err != nil {
			return err
		}
		defer env.Close()

		preds, err := env.predictAll(ctx, queries, env.Threshold)
		if err != nil {
			return eris.Wrap(err, "predict")
		}

		var found int
		for _, p := range preds {
			if p.Selection.Found() {
				found++
			}
		}
		zap.L().Info("predict complete",
			zap.String("dataset", ds.Name),
			zap.Int("queries", len(preds)),
			zap.Int("transferred", found))

		if env.Store != nil {
			if err := env.Store.SavePredictions(ctx, records(preds)); err != nil {
				return eris.Wrap(err, "predict: save")
			}
		}

		w, closeFn, err := openOutput(output)
		if err != nil {
			return err
		}
		defer closeFn() //nolint:errcheck
		return dataset.WritePredictions(w, preds)
	},
}

func filterQueries(queries []pipeline.Query, name string) []pipeline.Query {
	var out []pipeline.Query
	for _, q := range queries {
		if q.Name == name {
			out = append(out, q)
		}
	}
	return out
}

func init() {
	predictCmd.Flags().String("dataset", "", "dataset file (YAML or JSON)")
	predictCmd.Flags().String("query", "", "only predict the named query")
	predictCmd.Flags().String("output", "", "write JSON to this file instead of stdout")
	predictCmd.Flags().Bool("save", false, "persist predictions to the configured store")
	_ = predictCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(predictCmd)
}
