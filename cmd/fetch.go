package main

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/enerdoc/facture-cli/internal/fetch"
)

var fetchInboxDir string

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>...",
	Short: "Pull remote invoice drops into the inbox",
	Long:  "Downloads documents or ZIP drops over HTTP(S) or FTP into the inbox directory. A later batch run picks them up.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		inbox := fetchInboxDir
		if inbox == "" {
			inbox = cfg.Inbox.Dir
		}
		if err := os.MkdirAll(inbox, 0o755); err != nil {
			return eris.Wrapf(err, "fetch: create inbox %s", inbox)
		}

		timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
		httpFetcher := fetch.NewHTTPFetcher(fetch.HTTPOptions{Timeout: timeout})
		ftpFetcher := fetch.NewFTPFetcher(fetch.FTPOptions{
			Timeout:  timeout,
			User:     cfg.Fetch.FTPUser,
			Password: cfg.Fetch.FTPPassword,
		})

		for _, rawURL := range args {
			u, err := url.Parse(rawURL)
			if err != nil {
				return eris.Wrapf(err, "fetch: parse %s", rawURL)
			}
			name := path.Base(u.Path)
			if name == "" || name == "/" || name == "." {
				return eris.Errorf("fetch: cannot derive a file name from %s", rawURL)
			}
			dest := filepath.Join(inbox, name)

			var n int64
			switch u.Scheme {
			case "http", "https":
				n, err = httpFetcher.DownloadToFile(ctx, rawURL, dest)
			case "ftp":
				n, err = ftpFetcher.DownloadToFile(ctx, rawURL, dest)
			default:
				return eris.Errorf("fetch: unsupported scheme %q", u.Scheme)
			}
			if err != nil {
				return err
			}
			zap.L().Info("fetched", zap.String("url", rawURL),
				zap.String("dest", dest), zap.Int64("bytes", n))
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchInboxDir, "inbox", "", "inbox directory (default from config)")
	rootCmd.AddCommand(fetchCmd)
}
