package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/enerdoc/facture-cli/internal/model"
)

// extractOutput is the single-document result printed to stdout.
type extractOutput struct {
	Source   string                     `json:"source"`
	Supplier string                     `json:"supplier_hint,omitempty"`
	Profile  string                     `json:"profile"`
	Ignored  bool                       `json:"ignored,omitempty"`
	Reason   string                     `json:"reason,omitempty"`
	Record   *model.EnergyInvoiceRecord `json:"record,omitempty"`
	Journal  *model.ExtractionJournal   `json:"journal,omitempty"`
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract one invoice document",
	Long:  "Runs the per-document path on a single PDF or text file and prints the normalized record and its extraction journal as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.ProcessDocument(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "extract %s", args[0])
		}

		out := extractOutput{
			Source:   res.Doc.Name,
			Supplier: res.Doc.SupplierHint,
			Profile:  res.Profile.Name,
			Ignored:  res.Ignored,
			Reason:   res.Reason,
			Record:   res.Record,
			Journal:  res.Journal,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
