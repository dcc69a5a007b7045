package porta

import (
	"strings"
	"unicode"
)

// parentSignature anchors a "bestehend aus je:" block to the parent set
// article announcing it, so repeated blocks for the same parent can be
// compared across pages.
type parentSignature struct {
	ArtikelNr string
	Model     string
	Article   string
}

func (p parentSignature) empty() bool {
	return p.ArtikelNr == "" && p.Model == "" && p.Article == ""
}

type component struct {
	Model    string
	Article  string
	Qty      float64
	Explicit bool
}

type componentBlock struct {
	Page       string
	Parent     *parentSignature
	Components []component
}

// occurrence is one expected component item derived from the PDF text.
type occurrence struct {
	Model    string
	Article  string
	Qty      float64
	Page     string
	Parent   *parentSignature
	Explicit bool
}

func (o occurrence) hasParent() bool { return o.Parent != nil && !o.Parent.empty() }

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// isInvalidComponentModel rejects legal register tokens (HRB/HRA and their
// OCR variants with 8 read as B) that are never real model numbers.
func isInvalidComponentModel(model string) bool {
	token := nonAlnumRe.ReplaceAllString(strings.ToUpper(model), "")
	if token == "" {
		return true
	}
	normalized := strings.ReplaceAll(token, "8", "B")
	return strings.HasPrefix(normalized, "HRB") || strings.HasPrefix(normalized, "HRA")
}

func isComponentBlockEnd(line string) bool {
	upper := strings.ToUpper(line)
	if parentArtikelNrRe.MatchString(upper) {
		return true
	}
	if parentRowRe.MatchString(upper) {
		return true
	}
	if legalLineRe.MatchString(upper) {
		return true
	}
	return blockEndRe.MatchString(upper)
}

func normalizeParentArtikelNr(value string) string {
	return whitespaceRe.ReplaceAllString(strings.ToUpper(value), "")
}

// extractParentSignature reads a parent set-article signature off a line.
// Signatures are anchored to visible parent context (the NNNNNN/NN artikel
// number or a LIEFERMODELL row), never to arbitrary component pairs.
func extractParentSignature(line string) *parentSignature {
	upper := strings.ToUpper(line)
	if upper == "" || legalLineRe.MatchString(upper) {
		return nil
	}

	artikelNr := ""
	if m := parentArtikelNrRe.FindString(upper); m != "" {
		artikelNr = normalizeParentArtikelNr(m)
	}

	pairModel, pairArticle := "", ""
	for _, m := range componentPairRe.FindAllStringSubmatch(upper, -1) {
		if !hasLetter(m[1]) || isInvalidComponentModel(m[1]) {
			continue
		}
		pairModel, pairArticle = m[1], m[2]
	}

	if artikelNr == "" && !(strings.Contains(upper, "LIEFERMODELL") && pairModel != "" && pairArticle != "") {
		return nil
	}
	if artikelNr == "" && pairModel == "" {
		return nil
	}
	return &parentSignature{ArtikelNr: artikelNr, Model: pairModel, Article: pairArticle}
}

// componentPairFromGroup picks the model/article pair for one component
// group, taking the last valid pair across the group's lines.
func componentPairFromGroup(groupLines []string) (string, string, bool) {
	var pairs [][]string
	for _, raw := range groupLines {
		line := strings.ToUpper(raw)
		if legalLineRe.MatchString(line) {
			continue
		}
		pairs = append(pairs, componentPairRe.FindAllStringSubmatch(line, -1)...)
	}
	if len(pairs) == 0 {
		return "", "", false
	}
	last := pairs[len(pairs)-1]
	if !hasLetter(last[1]) || isInvalidComponentModel(last[1]) {
		return "", "", false
	}
	return last[1], last[2], true
}

func appendComponentToBlock(block *componentBlock, groupLines []string, qty float64, hasExplicitQty bool) {
	if block == nil || !hasExplicitQty {
		return
	}
	model, article, ok := componentPairFromGroup(groupLines)
	if !ok {
		return
	}
	block.Components = append(block.Components, component{
		Model:    model,
		Article:  article,
		Qty:      qty,
		Explicit: true,
	})
}

func finalizeBlock(blocks []componentBlock, block *componentBlock) []componentBlock {
	if block == nil || len(block.Components) == 0 {
		return blocks
	}
	return append(blocks, *block)
}

// componentBlocksFromPages scans the ordered page texts for "bestehend aus
// je:" component blocks. Within a block each quantity marker starts (or, in
// the qty-after-description layout, closes) one component group.
func componentBlocksFromPages(pageTexts map[string]string) []componentBlock {
	var blocks []componentBlock
	for _, page := range OrderedPages(pageTexts) {
		lines := nonBlankLines(page.Text)
		inBlock := false
		var groupLines []string
		groupQty := 1.0
		groupHasExplicitQty := false
		var current *componentBlock
		var lastParent *parentSignature

		index := 0
		for index < len(lines) {
			line := lines[index]

			if inBlock && isComponentBlockEnd(line) {
				appendComponentToBlock(current, groupLines, groupQty, groupHasExplicitQty)
				groupLines = nil
				groupQty = 1
				groupHasExplicitQty = false
				blocks = finalizeBlock(blocks, current)
				current = nil
				inBlock = false
				// Re-examine the terminating line as parent context.
				continue
			}

			if bestehendAusJeRe.MatchString(line) {
				if inBlock {
					appendComponentToBlock(current, groupLines, groupQty, groupHasExplicitQty)
					blocks = finalizeBlock(blocks, current)
				}
				inBlock = true
				groupLines = nil
				groupQty = 1
				groupHasExplicitQty = false
				current = &componentBlock{Page: page.Name, Parent: lastParent}
				index++
				continue
			}

			if inBlock {
				if qty, consumed, ok := extractQtyMarker(lines, index); ok {
					if len(groupLines) > 0 && !groupHasExplicitQty {
						// Layout variant where the qty marker trails the
						// component description.
						appendComponentToBlock(current, groupLines, qty, true)
						groupLines = nil
						groupQty = 1
						groupHasExplicitQty = false
					} else {
						appendComponentToBlock(current, groupLines, groupQty, groupHasExplicitQty)
						groupLines = []string{line}
						groupQty = qty
						groupHasExplicitQty = true
					}
					index += consumed
				} else {
					groupLines = append(groupLines, line)
					index++
				}
				continue
			}

			if sig := extractParentSignature(line); sig != nil {
				lastParent = sig
			}
			index++
		}

		if inBlock {
			appendComponentToBlock(current, groupLines, groupQty, groupHasExplicitQty)
			blocks = finalizeBlock(blocks, current)
		}
	}
	return blocks
}

func occurrencesFromBlocks(blocks []componentBlock) []occurrence {
	var occurrences []occurrence
	for i := range blocks {
		block := &blocks[i]
		for _, c := range block.Components {
			model := strings.ToUpper(strings.TrimSpace(c.Model))
			article := strings.ToUpper(strings.TrimSpace(c.Article))
			if model == "" || article == "" {
				continue
			}
			occurrences = append(occurrences, occurrence{
				Model:    model,
				Article:  article,
				Qty:      c.Qty,
				Page:     block.Page,
				Parent:   block.Parent,
				Explicit: c.Explicit,
			})
		}
	}
	return occurrences
}

type occKey struct {
	Model   string
	Article string
	Qty     string
}

// expectedOccurrencesWithBackfill flattens the blocks into expected
// occurrences. When a later block for the same parent signature lists fewer
// components than an earlier one, the missing components are backfilled from
// the canonical (largest) block seen for that parent; it returns how many
// components were backfilled that way.
func expectedOccurrencesWithBackfill(blocks []componentBlock) ([]occurrence, int) {
	var expected []occurrence
	canonicalByParent := make(map[parentSignature][]component)
	backfilled := 0

	for i := range blocks {
		block := &blocks[i]

		var components []component
		for _, c := range block.Components {
			model := strings.ToUpper(strings.TrimSpace(c.Model))
			article := strings.ToUpper(strings.TrimSpace(c.Article))
			if model == "" || article == "" {
				continue
			}
			components = append(components, component{
				Model:    model,
				Article:  article,
				Qty:      c.Qty,
				Explicit: c.Explicit,
			})
		}

		if block.Parent != nil && !block.Parent.empty() {
			parent := *block.Parent
			canonical := canonicalByParent[parent]
			if len(canonical) > 0 && len(components) < len(canonical) {
				missing := make(map[occKey]int, len(canonical))
				for _, c := range canonical {
					missing[occKey{c.Model, c.Article, qtyKey(c.Qty)}]++
				}
				for _, c := range components {
					missing[occKey{c.Model, c.Article, qtyKey(c.Qty)}]--
				}
				for _, c := range canonical {
					key := occKey{c.Model, c.Article, qtyKey(c.Qty)}
					if missing[key] <= 0 {
						continue
					}
					refill := c
					refill.Explicit = false
					components = append(components, refill)
					missing[key]--
					backfilled++
				}
			}
			if len(components) > len(canonicalByParent[parent]) {
				canonicalByParent[parent] = append([]component(nil), components...)
			}
		}

		for _, c := range components {
			expected = append(expected, occurrence{
				Model:    c.Model,
				Article:  c.Article,
				Qty:      c.Qty,
				Page:     block.Page,
				Parent:   block.Parent,
				Explicit: c.Explicit,
			})
		}
	}

	return expected, backfilled
}
