package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/enerdoc/facture-cli/internal/fetch"
	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/reconcile"
	"github.com/enerdoc/facture-cli/internal/store"
)

var (
	reconcilePerimeter string
	reconcileRunID     string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare extracted records against a site perimeter",
	Long:  "Reads a perimeter file (CSV or XLSX with site and reference columns) and reports which expected metering points were covered, which are missing and which records were unexpected.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if reconcilePerimeter == "" {
			return eris.New("reconcile: --perimeter is required")
		}

		perimeter, err := fetch.ReadPerimeter(ctx, reconcilePerimeter)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		records, err := st.ListRecords(ctx, store.RecordFilter{
			RunID: reconcileRunID,
			State: model.StateKept,
		})
		if err != nil {
			return eris.Wrap(err, "reconcile: list records")
		}

		report := reconcile.Build(perimeter, records)
		formatReconcileReport(os.Stdout, report)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcilePerimeter, "perimeter", "", "perimeter file, CSV or XLSX (required)")
	reconcileCmd.Flags().StringVar(&reconcileRunID, "run", "", "restrict to one run (default: all kept records)")
	rootCmd.AddCommand(reconcileCmd)
}

func formatReconcileReport(out io.Writer, report reconcile.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Matched:\t%d\n", len(report.Matched))
	_, _ = fmt.Fprintf(w, "Missing:\t%d\n", len(report.Missing))
	_, _ = fmt.Fprintf(w, "Unexpected:\t%d\n", len(report.Unexpected))
	_, _ = fmt.Fprintf(w, "Coverage:\t%.1f%%\n", report.Coverage()*100)
	_ = w.Flush()

	if len(report.Missing) > 0 {
		fmt.Fprintln(out, "\nMissing from extraction:")
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SITE\tREFERENCE\tPOSTAL\tCITY")
		for _, e := range report.Missing {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Site, e.Reference, e.PostalCode, e.City)
		}
		_ = w.Flush()
	}

	if len(report.Unexpected) > 0 {
		fmt.Fprintln(out, "\nExtracted but not in perimeter:")
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "REFERENCE\tSUPPLIER\tSOURCE")
		for _, r := range report.Unexpected {
			supplier := ""
			if r.Record.Supplier != nil {
				supplier = *r.Record.Supplier
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.ReferenceKey, supplier, r.Journal.SourceFile)
		}
		_ = w.Flush()
	}
}
