package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/furnbridge/orderdesk/internal/model"
	"github.com/furnbridge/orderdesk/internal/pdftext"
	"github.com/furnbridge/orderdesk/pkg/llm"
)

// PageRenderer rasterizes PDF pages to PNG images for the extraction call.
type PageRenderer interface {
	RenderPages(ctx context.Context, data []byte, stem string, maxPages int) ([]pdftext.RenderedPage, error)
}

// preparedInputs holds the per-message attachment material: rendered images
// for the model call and digital page text keyed by rendered image name.
type preparedInputs struct {
	Images    []llm.Image
	PageTexts map[string]string
}

// prepareInputs renders PDF attachments to page images, pairs each page with
// its digital text and passes raster attachments through unchanged. Failures
// on individual attachments degrade to warnings.
func (p *Pipeline) prepareInputs(ctx context.Context, msg model.IngestedEmail, warnings *[]string) preparedInputs {
	inputs := preparedInputs{PageTexts: map[string]string{}}

	for _, att := range msg.PDFs() {
		stem := safeName(strings.TrimSuffix(att.Filename, filepath.Ext(att.Filename)))

		var pageTexts []string
		// A zero per-page cap turns digital text off entirely; negative
		// values mean uncapped.
		if p.pdf != nil && p.cfg.Pipeline.MaxPDFTextCharsPerPage != 0 {
			texts, err := p.pdf.PageTexts(att.Data)
			if err != nil {
				*warnings = append(*warnings, fmt.Sprintf("PDF text extraction failed for %s: %v", att.Filename, err))
			} else {
				pageTexts = capPageTexts(texts, p.cfg.Pipeline.MaxPDFTextCharsPerPage, att.Filename, warnings)
				if allBlank(pageTexts) {
					*warnings = append(*warnings, fmt.Sprintf(
						"No digital PDF text extracted for %s; using images only.", att.Filename))
				}
			}
		}

		if p.renderer == nil {
			continue
		}
		pages, err := p.renderer.RenderPages(ctx, att.Data, stem, p.cfg.Pipeline.MaxImagesPerExtraction)
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("PDF conversion failed for %s: %v", att.Filename, err))
			continue
		}
		for i, page := range pages {
			inputs.Images = append(inputs.Images, llm.Image{
				Name:      page.Name,
				MediaType: "image/png",
				Data:      page.PNG,
			})
			if i < len(pageTexts) && strings.TrimSpace(pageTexts[i]) != "" {
				inputs.PageTexts[page.Name] = pageTexts[i]
			}
		}
	}

	for _, att := range msg.Images() {
		name := att.Filename
		if name == "" {
			name = "image"
		}
		inputs.Images = append(inputs.Images, llm.Image{
			Name:      name,
			MediaType: imageMediaType(att),
			Data:      att.Data,
		})
	}

	if max := p.cfg.Pipeline.MaxImagesPerExtraction; max > 0 && len(inputs.Images) > max {
		*warnings = append(*warnings, fmt.Sprintf(
			"Image count truncated from %d to %d.", len(inputs.Images), max))
		inputs.Images = inputs.Images[:max]
		kept := make(map[string]bool, len(inputs.Images))
		for _, img := range inputs.Images {
			kept[img.Name] = true
		}
		for name := range inputs.PageTexts {
			if !kept[name] {
				delete(inputs.PageTexts, name)
			}
		}
	}

	zap.L().Debug("attachments prepared",
		zap.Int("images", len(inputs.Images)),
		zap.Int("text_pages", len(inputs.PageTexts)),
	)
	return inputs
}

// capPageTexts truncates each page's text to maxChars runes and records a
// warning per truncated page.
func capPageTexts(texts []string, maxChars int, filename string, warnings *[]string) []string {
	if maxChars <= 0 {
		return texts
	}
	for i, text := range texts {
		runes := []rune(text)
		if len(runes) <= maxChars {
			continue
		}
		*warnings = append(*warnings, fmt.Sprintf(
			"PDF text truncated for %s page %d to %d chars", filename, i+1, maxChars))
		texts[i] = string(runes[:maxChars])
	}
	return texts
}

func allBlank(texts []string) bool {
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			return false
		}
	}
	return true
}

// imageMediaType picks the MIME type sent to the model for a raster
// attachment. Unknown types fall back to PNG, which the conversion step on
// the intake side guarantees.
func imageMediaType(att model.Attachment) string {
	ct := strings.ToLower(strings.TrimSpace(att.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return ct
	}
	switch strings.ToLower(filepath.Ext(att.Filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return "image/png"
}
