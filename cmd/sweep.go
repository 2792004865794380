package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pfmtransfer/internal/dataset"
	"github.com/sells-group/pfmtransfer/internal/evaluate"
	"github.com/sells-group/pfmtransfer/internal/model"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate a dataset across a grid of static cutoffs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("dataset")
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		save, _ := cmd.Flags().GetBool("save")
		f := cmd.Flags()
		if f.Changed("start") {
			cfg.Sweep.Start, _ = f.GetFloat64("start")
		}
		if f.Changed("stop") {
			cfg.Sweep.Stop, _ = f.GetFloat64("stop")
		}
		if f.Changed("step") {
			cfg.Sweep.Step, _ = f.GetFloat64("step")
		}
		if format != "json" && format != "csv" {
			return eris.Errorf("sweep: unsupported format %q", format)
		}

		ds, err := dataset.LoadFile(path)
		if err != nil {
			return err
		}

		env, err := initTransfer(ctx, cfg, "sweep", save)
		if err != nil {
			return err
		}
		defer env.Close()

		grid, err := evaluate.Grid(cfg.Sweep.Start, cfg.Sweep.Stop, cfg.Sweep.Step)
		if err != nil {
			return err
		}

		queries := ds.Queries
		if env.Scorer != nil {
			for i, q := range queries {
				if queries[i], err = env.Scorer.Score(ctx, q); err != nil {
					return eris.Wrap(err, "sweep: score")
				}
			}
		}

		points, err := env.Evaluator.Sweep(ctx, grid, queries)
		if err != nil {
			return eris.Wrap(err, "sweep")
		}

		if env.Store != nil {
			rec := &model.SweepRecord{Dataset: ds.Name, Points: points}
			if err := env.Store.SaveSweep(ctx, rec); err != nil {
				return eris.Wrap(err, "sweep: save")
			}
			fmt.Fprintf(os.Stderr, "Saved sweep %s\n", rec.ID)
		}

		w, closeFn, err := openOutput(output)
		if err != nil {
			return err
		}
		defer closeFn() //nolint:errcheck
		if format == "csv" {
			return dataset.WriteSweepCSV(w, points)
		}
		return dataset.WriteSweepJSON(w, points)
	},
}

func init() {
	sweepCmd.Flags().String("dataset", "", "dataset file with reference profiles")
	sweepCmd.Flags().Float64("start", 0, "first cutoff (default from config)")
	sweepCmd.Flags().Float64("stop", 1, "last cutoff (default from config)")
	sweepCmd.Flags().Float64("step", 0.05, "cutoff increment (default from config)")
	sweepCmd.Flags().String("format", "json", "output format: json or csv")
	sweepCmd.Flags().String("output", "", "write to this file instead of stdout")
	sweepCmd.Flags().Bool("save", false, "persist the sweep to the configured store")
	_ = sweepCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(sweepCmd)
}
