// Package pdftext extracts digital text from PDF bytes using the pdftotext
// CLI tool. Scanned pages without a text layer yield empty strings.
package pdftext

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const commandTimeout = 30 * time.Second

// Extractor shells out to pdftotext.
type Extractor struct {
	binPath string
}

// New creates an Extractor. If binPath is empty, "pdftotext" is used.
func New(binPath string) *Extractor {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &Extractor{binPath: binPath}
}

func (e *Extractor) run(data []byte, extraArgs ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	args := append([]string{"-layout"}, extraArgs...)
	args = append(args, "-", "-")
	cmd := exec.CommandContext(ctx, e.binPath, args...)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "pdftext: pdftotext failed: %s", stderr.String())
	}

	return stdout.String(), nil
}

// FirstPageText returns the digital text of the first page only.
func (e *Extractor) FirstPageText(data []byte) (string, error) {
	return e.run(data, "-f", "1", "-l", "1")
}

// PageTexts returns per-page digital text. pdftotext separates pages with a
// form feed.
func (e *Extractor) PageTexts(data []byte) ([]string, error) {
	out, err := e.run(data)
	if err != nil {
		return nil, err
	}
	pages := strings.Split(out, "\f")
	// The trailing form feed produces one empty final element.
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}
