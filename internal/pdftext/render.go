package pdftext

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const renderTimeout = 120 * time.Second

// RenderedPage is one PDF page rasterized to PNG. The name carries the page
// number as a "-N" suffix so downstream passes can map page text to it.
type RenderedPage struct {
	Name string
	PNG  []byte
}

// Renderer rasterizes PDF pages with the pdftoppm CLI tool.
type Renderer struct {
	binPath string
	dpi     int
}

// NewRenderer creates a Renderer. If binPath is empty, "pdftoppm" is used;
// a dpi of 0 or less falls back to 150.
func NewRenderer(binPath string, dpi int) *Renderer {
	if binPath == "" {
		binPath = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &Renderer{binPath: binPath, dpi: dpi}
}

// RenderPages converts up to maxPages PDF pages to PNG images. A maxPages of
// 0 or less renders every page.
func (r *Renderer) RenderPages(ctx context.Context, data []byte, stem string, maxPages int) ([]RenderedPage, error) {
	dir, err := os.MkdirTemp("", "orderdesk-render-")
	if err != nil {
		return nil, eris.Wrap(err, "pdftext: temp dir")
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, eris.Wrap(err, "pdftext: write pdf")
	}

	if stem == "" {
		stem = "page"
	}
	prefix := filepath.Join(dir, "out")

	runCtx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	args := []string{"-png", "-r", strconv.Itoa(r.dpi)}
	if maxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(maxPages))
	}
	args = append(args, pdfPath, prefix)

	cmd := exec.CommandContext(runCtx, r.binPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "pdftext: pdftoppm failed: %s", stderr.String())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrap(err, "pdftext: read render dir")
	}

	var pages []RenderedPage
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "out-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		num, ok := parsePageSuffix(name)
		if !ok {
			continue
		}
		png, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, eris.Wrap(err, "pdftext: read page image")
		}
		pages = append(pages, RenderedPage{
			Name: fmt.Sprintf("%s-%d.png", stem, num),
			PNG:  png,
		})
	}
	sort.Slice(pages, func(i, j int) bool {
		ni, _ := parsePageSuffix(pages[i].Name)
		nj, _ := parsePageSuffix(pages[j].Name)
		return ni < nj
	})
	return pages, nil
}

// parsePageSuffix extracts the trailing page number from names like
// "out-07.png" or "scan-3.png".
func parsePageSuffix(name string) (int, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
