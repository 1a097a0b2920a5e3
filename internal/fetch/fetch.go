// Package fetch brings invoice documents into the inbox: directory
// walks, ZIP drops, HTTP downloads with adaptive rate limiting, FTP
// pulls, and the client perimeter files that reconciliation reads.
package fetch

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)

	// HeadETag performs a HEAD request and returns the ETag header value.
	HeadETag(ctx context.Context, url string) (string, error)

	// DownloadIfChanged fetches the URL only if the ETag has changed.
	// Returns (body, newETag, changed, error). If not changed, body is nil and changed is false.
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}

// documentExtensions are the file types accepted as invoice documents.
// Text files bypass OCR downstream.
var documentExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".text": true,
}

// IsDocument reports whether the file name has an accepted document extension.
func IsDocument(name string) bool {
	return documentExtensions[strings.ToLower(filepath.Ext(name))]
}

// IsArchive reports whether the file name is a ZIP archive.
func IsArchive(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}

// WalkInbox lists the invoice documents under root in lexical order.
// Hidden files and directories are skipped.
func WalkInbox(root string) ([]string, error) {
	var docs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if IsDocument(name) {
			docs = append(docs, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: walk inbox %s", root)
	}
	sort.Strings(docs)
	return docs, nil
}

// ExpandArchives extracts every ZIP under root into a directory named
// after the archive and returns the document files extraction produced,
// in lexical order. The extracted files live under root, so a later
// WalkInbox picks them up as well.
func ExpandArchives(root string) ([]string, error) {
	var archives []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsArchive(d.Name()) {
			archives = append(archives, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: scan archives in %s", root)
	}

	var produced []string
	for _, archive := range archives {
		destDir := strings.TrimSuffix(archive, filepath.Ext(archive))
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return produced, eris.Wrapf(err, "fetch: create extraction dir for %s", archive)
		}
		files, err := ExtractZIP(archive, destDir)
		if err != nil {
			return produced, err
		}
		for _, f := range files {
			if IsDocument(filepath.Base(f)) {
				produced = append(produced, f)
			}
		}
	}
	sort.Strings(produced)
	return produced, nil
}
