package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/enerdoc/facture-cli/internal/export"
	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/store"
	"github.com/enerdoc/facture-cli/pkg/notion"
)

var (
	exportRunID      string
	exportFormat     string
	exportOutPath    string
	exportNotion     bool
	exportSalesforce bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export kept records from a run",
	Long:  "Reads a run's kept records from the store and writes them to a broker file (xlsx, csv, jsonl) or pushes them to Notion or Salesforce.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if exportRunID == "" {
			return eris.New("export: --run is required")
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
			RunID: exportRunID,
			State: model.StateKept,
		})
		if err != nil {
			return eris.Wrap(err, "export: list records")
		}
		if len(records) == 0 {
			return eris.Errorf("export: run %s has no kept records", exportRunID)
		}

		if exportNotion {
			if cfg.Notion.Token == "" || cfg.Notion.RecordsDB == "" {
				return eris.New("export: notion token and records database must be configured")
			}
			sink := export.NewNotionSink(notion.NewClient(cfg.Notion.Token), cfg.Notion.RecordsDB)
			report, pubErr := sink.Publish(ctx, records)
			if pubErr != nil {
				return pubErr
			}
			zap.L().Info("notion export done",
				zap.Int("created", report.Created),
				zap.Int("updated", report.Updated),
				zap.Int("failed", report.Failed),
			)
		}

		if exportSalesforce {
			sfClient, sfErr := initSalesforce()
			if sfErr != nil {
				return sfErr
			}
			sink := export.NewSalesforceSink(sfClient, cfg.Salesforce.Object, cfg.Salesforce.ReferenceField)
			report, pushErr := sink.Push(ctx, records)
			if pushErr != nil {
				return pushErr
			}
			zap.L().Info("salesforce export done",
				zap.Int("upserted", report.Upserted),
				zap.Int("failed", report.Failed),
			)
		}

		if exportNotion || exportSalesforce {
			return nil
		}

		out := exportOutPath
		if out == "" {
			if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
				return eris.Wrapf(err, "export: create output dir %s", cfg.Export.Dir)
			}
			out = filepath.Join(cfg.Export.Dir, "records_"+exportRunID+"."+exportFormat)
		}

		switch exportFormat {
		case "xlsx":
			err = export.WriteXLSX(out, records)
		case "csv":
			err = export.WriteCSV(out, records)
		case "jsonl":
			err = export.WriteJSONL(out, records)
		default:
			return eris.Errorf("export: unsupported format %q", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export written",
			zap.String("path", out),
			zap.Int("records", len(records)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "run ID to export (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "output format: xlsx, csv or jsonl")
	exportCmd.Flags().StringVar(&exportOutPath, "out", "", "output file path (default under the export dir)")
	exportCmd.Flags().BoolVar(&exportNotion, "notion", false, "publish records to the Notion database")
	exportCmd.Flags().BoolVar(&exportSalesforce, "salesforce", false, "upsert records into Salesforce")
	rootCmd.AddCommand(exportCmd)
}
