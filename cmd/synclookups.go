package main

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/furnbridge/orderdesk/internal/fetcher"
)

var syncZipped bool

var syncLookupsCmd = &cobra.Command{
	Use:   "sync-lookups",
	Short: "Download customer and tour lookup files from the retailer file server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("sync-lookups"); err != nil {
			return err
		}
		return syncLookups(cmd.Context())
	},
}

func init() {
	syncLookupsCmd.Flags().BoolVar(&syncZipped, "zipped", false, "remote files are ZIP archives named <file>.zip")
	rootCmd.AddCommand(syncLookupsCmd)
}

// lookupTargets returns the configured local lookup paths that should be
// refreshed. Empty paths are skipped.
func lookupTargets() []string {
	candidates := []string{
		cfg.Lookup.PrimexPath,
		cfg.Lookup.ILNMapPath,
		cfg.Lookup.KundenBulgarienCSV,
		cfg.Lookup.LieferlogikPath,
		cfg.Lookup.ZBCatalogPath,
	}
	var targets []string
	for _, p := range candidates {
		if p != "" {
			targets = append(targets, p)
		}
	}
	return targets
}

// lookupFetcher is the subset of fetcher.Fetcher that sync-lookups needs.
// The FTP fetcher does not support conditional downloads, so the full
// interface is deliberately not required here.
type lookupFetcher interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// newLookupFetcher picks the fetcher by the host's URL scheme. A bare host
// name means FTP, which is what the retailer file servers speak.
func newLookupFetcher() (lookupFetcher, string, error) {
	host := cfg.Lookup.FTPHost
	if !strings.Contains(host, "://") {
		host = "ftp://" + host
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, "", eris.Wrap(err, "parse lookup host")
	}

	switch u.Scheme {
	case "http", "https":
		return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), host, nil
	case "ftp":
		return fetcher.NewFTPFetcher(fetcher.FTPOptions{
			User:     cfg.Lookup.FTPUser,
			Password: cfg.Lookup.FTPPassword,
		}), host, nil
	default:
		return nil, "", eris.Errorf("unsupported lookup host scheme %q", u.Scheme)
	}
}

func syncLookups(ctx context.Context) error {
	targets := lookupTargets()
	if len(targets) == 0 {
		zap.L().Info("no lookup paths configured")
		return nil
	}

	f, base, err := newLookupFetcher()
	if err != nil {
		return err
	}

	for _, target := range targets {
		if err := syncLookupFile(ctx, f, base, target); err != nil {
			return err
		}
	}

	zap.L().Info("lookup sync complete", zap.Int("files", len(targets)))
	return nil
}

func syncLookupFile(ctx context.Context, f lookupFetcher, base, target string) error {
	remoteName := filepath.Base(target)
	if syncZipped {
		remoteName += ".zip"
	}
	remoteURL, err := joinRemote(base, cfg.Lookup.FTPDir, remoteName)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return eris.Wrapf(err, "create lookup dir for %s", target)
	}

	if !syncZipped {
		n, err := f.DownloadToFile(ctx, remoteURL, target)
		if err != nil {
			return eris.Wrapf(err, "download %s", remoteURL)
		}
		zap.L().Info("lookup file updated",
			zap.String("path", target),
			zap.Int64("bytes", n),
		)
		return nil
	}

	tmp, err := os.CreateTemp("", "orderdesk-lookup-*.zip")
	if err != nil {
		return eris.Wrap(err, "create temp archive")
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if _, err := f.DownloadToFile(ctx, remoteURL, tmpPath); err != nil {
		return eris.Wrapf(err, "download %s", remoteURL)
	}

	if err := extractLookupArchive(tmpPath, target); err != nil {
		return eris.Wrapf(err, "extract %s", remoteURL)
	}

	zap.L().Info("lookup file updated",
		zap.String("path", target),
		zap.String("archive", remoteName),
	)
	return nil
}

// extractLookupArchive unpacks a downloaded archive into the target path.
// Archives normally carry the file under its own name; a single-file archive
// with a different name is accepted and renamed.
func extractLookupArchive(zipPath, target string) error {
	dir := filepath.Dir(target)
	extracted, err := fetcher.ExtractZIPFile(zipPath, filepath.Base(target), dir)
	if err != nil {
		extracted, err = fetcher.ExtractZIPSingle(zipPath, dir)
	}
	if err != nil {
		return err
	}
	if extracted != target {
		if err := os.Rename(extracted, target); err != nil {
			return eris.Wrapf(err, "move %s into place", extracted)
		}
	}
	return nil
}

// joinRemote builds the remote URL from the host base, the remote directory
// and the file name.
func joinRemote(base, dir, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrap(err, "parse lookup host")
	}
	u.Path = path.Join(u.Path, dir, name)
	return u.String(), nil
}
