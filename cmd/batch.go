package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/enerdoc/facture-cli/internal/export"
	"github.com/enerdoc/facture-cli/internal/fetch"
	"github.com/enerdoc/facture-cli/internal/pipeline"
)

var (
	batchOutDir   string
	batchRetryDLQ bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir|zip>",
	Short: "Run a full extraction batch over an invoice drop",
	Long:  "Processes every document under a directory (or inside a ZIP drop), deduplicates by metering-point reference and writes JSONL, CSV and XLSX outputs.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if batchRetryDLQ {
			report, dlqErr := env.Pipeline.RetryDLQ(ctx)
			if dlqErr != nil {
				return dlqErr
			}
			zap.L().Info("dlq retry done",
				zap.Int("attempted", report.Attempted),
				zap.Int("recovered", report.Recovered),
				zap.Int("requeued", report.Requeued),
				zap.Int("exhausted", report.Exhausted),
			)
			return nil
		}

		if len(args) == 0 {
			return eris.New("batch: a source directory or ZIP is required")
		}
		dir, err := resolveSource(args[0])
		if err != nil {
			return err
		}

		res, err := env.Pipeline.Run(ctx, dir)
		if err != nil {
			return err
		}

		outDir := batchOutDir
		if outDir == "" {
			outDir = cfg.Export.Dir
		}
		if err := writeBatchOutputs(outDir, res); err != nil {
			return err
		}

		counts := res.Run.Counts
		zap.L().Info("batch complete",
			zap.String("run_id", res.Run.ID),
			zap.Int("docs", counts.DocsTotal),
			zap.Int("kept", counts.RecordsKept),
			zap.Int("superseded", counts.RecordsSuperseded),
			zap.String("out", outDir),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchOutDir, "out", "", "output directory (default from config)")
	batchCmd.Flags().BoolVar(&batchRetryDLQ, "retry-dlq", false, "reprocess dead-lettered documents instead of a new batch")
	rootCmd.AddCommand(batchCmd)
}

// resolveSource accepts either an inbox directory or a single ZIP drop.
// A ZIP is expanded next to itself and the extraction dir becomes the
// inbox.
func resolveSource(arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return "", eris.Wrapf(err, "batch: stat %s", arg)
	}
	if info.IsDir() {
		return arg, nil
	}
	if !fetch.IsArchive(arg) {
		return "", eris.Errorf("batch: %s is neither a directory nor a ZIP", arg)
	}
	destDir := strings.TrimSuffix(arg, filepath.Ext(arg))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "batch: create extraction dir for %s", arg)
	}
	if _, err := fetch.ExtractZIP(arg, destDir); err != nil {
		return "", err
	}
	return destDir, nil
}

// writeBatchOutputs renders the kept records in every file format. The
// JSONL writer also streams the journals to a sibling file.
func writeBatchOutputs(outDir string, res *pipeline.RunResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return eris.Wrapf(err, "batch: create output dir %s", outDir)
	}
	kept := res.Kept()
	base := filepath.Join(outDir, "records_"+res.Run.ID)

	if err := export.WriteJSONL(base+".jsonl", kept); err != nil {
		return err
	}
	if err := export.WriteCSV(base+".csv", kept); err != nil {
		return err
	}
	return export.WriteXLSX(base+".xlsx", kept)
}
