package main

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furnbridge/orderdesk/internal/config"
	"github.com/furnbridge/orderdesk/internal/fetcher"
)

func TestJoinRemote(t *testing.T) {
	tests := []struct {
		base, dir, name string
		want            string
	}{
		{"ftp://ftp.example.com", "export/lookups", "Primex.xlsx", "ftp://ftp.example.com/export/lookups/Primex.xlsx"},
		{"ftp://ftp.example.com/root", "", "Lieferlogik.xlsx", "ftp://ftp.example.com/root/Lieferlogik.xlsx"},
		{"https://portal.example.com", "downloads", "ZB_Katalog.csv", "https://portal.example.com/downloads/ZB_Katalog.csv"},
	}
	for _, tt := range tests {
		got, err := joinRemote(tt.base, tt.dir, tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewLookupFetcherSchemes(t *testing.T) {
	orig := cfg
	defer func() { cfg = orig }()

	cfg = &config.Config{}
	cfg.Lookup.FTPHost = "ftp.moebel-portal.de"
	f, base, err := newLookupFetcher()
	require.NoError(t, err)
	assert.IsType(t, &fetcher.FTPFetcher{}, f)
	assert.Equal(t, "ftp://ftp.moebel-portal.de", base)

	cfg.Lookup.FTPHost = "https://portal.example.com"
	f, base, err = newLookupFetcher()
	require.NoError(t, err)
	assert.IsType(t, &fetcher.HTTPFetcher{}, f)
	assert.Equal(t, "https://portal.example.com", base)

	cfg.Lookup.FTPHost = "sftp://secure.example.com"
	_, _, err = newLookupFetcher()
	require.Error(t, err)
}

func TestLookupTargetsSkipsEmptyPaths(t *testing.T) {
	orig := cfg
	defer func() { cfg = orig }()

	cfg = &config.Config{}
	cfg.Lookup.PrimexPath = "data/Primex.xlsx"
	cfg.Lookup.LieferlogikPath = "data/Lieferlogik.xlsx"

	targets := lookupTargets()
	assert.Equal(t, []string{"data/Primex.xlsx", "data/Lieferlogik.xlsx"}, targets)
}

func writeLookupArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lookup.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractLookupArchiveByName(t *testing.T) {
	archive := writeLookupArchive(t, map[string]string{
		"Primex.xlsx": "workbook",
		"Readme.txt":  "notes",
	})
	target := filepath.Join(t.TempDir(), "Primex.xlsx")

	require.NoError(t, extractLookupArchive(archive, target))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(content))
}

func TestExtractLookupArchiveSingleRenamed(t *testing.T) {
	archive := writeLookupArchive(t, map[string]string{"export_2026.xlsx": "workbook"})
	target := filepath.Join(t.TempDir(), "Primex.xlsx")

	require.NoError(t, extractLookupArchive(archive, target))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(content))
	_, err = os.Stat(filepath.Join(filepath.Dir(target), "export_2026.xlsx"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractLookupArchiveAmbiguous(t *testing.T) {
	archive := writeLookupArchive(t, map[string]string{
		"a.xlsx": "1",
		"b.xlsx": "2",
	})
	target := filepath.Join(t.TempDir(), "Primex.xlsx")

	require.Error(t, extractLookupArchive(archive, target))
}
