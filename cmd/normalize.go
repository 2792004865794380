package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pfmtransfer/internal/dataset"
	"github.com/sells-group/pfmtransfer/internal/model"
	"github.com/sells-group/pfmtransfer/internal/profile"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <profile-file>",
	Short: "Convert a profile between probability and percentage form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "normalize: open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		ps, err := dataset.ParseProfile(f)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		n, err := ps.Normalize(name)
		if err != nil {
			return eris.Wrap(err, "normalize")
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(n)
		}
		return writeNormalized(os.Stdout, n)
	},
}

func writeNormalized(w io.Writer, n dataset.Normalized) error {
	if _, err := fmt.Fprintf(w, "%s\tconsensus %s\n", n.Probability.Name, n.Percent.Consensus); err != nil {
		return eris.Wrap(err, "normalize: write header")
	}
	if _, err := fmt.Fprintf(w, "pos\t%s\t%s\n", strings.Join(strings.Split(model.Bases, ""), "\t"), "percent"); err != nil {
		return eris.Wrap(err, "normalize: write header")
	}
	for i, c := range n.Probability.Columns {
		pc := n.Percent.Columns[i]
		if _, err := fmt.Fprintf(w, "%d\t%s\t%d/%d/%d/%d\n", i+1, profile.FormatColumn(c), pc[0], pc[1], pc[2], pc[3]); err != nil {
			return eris.Wrap(err, "normalize: write row")
		}
	}
	return nil
}

func init() {
	normalizeCmd.Flags().Bool("json", false, "print both forms as JSON")
	rootCmd.AddCommand(normalizeCmd)
}
