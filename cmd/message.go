package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/furnbridge/orderdesk/internal/fetcher"
	"github.com/furnbridge/orderdesk/internal/model"
)

// loadMessage reads one ingested email from a JSON file. A missing message
// ID falls back to the file name and a zero received time to now, so ad-hoc
// reprocessing of exported messages keeps working.
func loadMessage(path string) (model.IngestedEmail, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.IngestedEmail{}, eris.Wrapf(err, "open message %s", path)
	}
	defer f.Close()

	msg, err := fetcher.DecodeJSONObject[model.IngestedEmail](f)
	if err != nil {
		return model.IngestedEmail{}, eris.Wrapf(err, "decode message %s", path)
	}

	if msg.MessageID == "" {
		msg.MessageID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	return *msg, nil
}

// listMessageFiles returns the JSON message files directly inside dir,
// sorted by name.
func listMessageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read message dir %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}
