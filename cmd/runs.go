package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pfmtransfer/internal/dataset"
	"github.com/sells-group/pfmtransfer/internal/model"
	"github.com/sells-group/pfmtransfer/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored predictions and sweeps",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored predictions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		query, _ := cmd.Flags().GetString("query")
		limit, _ := cmd.Flags().GetInt("limit")

		recs, err := st.ListPredictions(ctx, store.PredictionFilter{Query: query, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No predictions found.")
			return nil
		}

		formatPredictionList(os.Stdout, recs)
		return nil
	},
}

// -- runs sweep --

var runsSweepCmd = &cobra.Command{
	Use:   "sweep <sweep-id>",
	Short: "Print a stored sweep as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rec, err := st.GetSweep(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs sweep")
		}
		fmt.Fprintf(os.Stderr, "Sweep %s over %s (%s)\n", rec.ID, rec.Dataset, rec.CreatedAt.Format(time.RFC3339))
		return dataset.WriteSweepCSV(os.Stdout, rec.Points)
	},
}

func formatPredictionList(w io.Writer, recs []model.PredictionRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUERY\tTIER\tMATCHES\tREMOVED\tCREATED") //nolint:errcheck
	for _, r := range recs {
		matches := strings.Join(r.Selection.Names(), ",")
		if !r.Selection.Found() {
			matches = r.Selection.NoMatch.Message()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", //nolint:errcheck
			shortID(r.ID), r.Query, r.Selection.Tier, matches, len(r.Removed),
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush() //nolint:errcheck
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsListCmd.Flags().String("query", "", "only predictions for this query")
	runsListCmd.Flags().Int("limit", store.DefaultListLimit, "maximum rows")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsSweepCmd)
	rootCmd.AddCommand(runsCmd)
}
