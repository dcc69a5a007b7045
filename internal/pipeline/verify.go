package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/furnbridge/orderdesk/internal/branch"
	"github.com/furnbridge/orderdesk/internal/model"
	"github.com/furnbridge/orderdesk/pkg/llm"
)

// orderedPageNames sorts rendered page names by their page-number suffix,
// with unnumbered names last in lexical order.
func orderedPageNames(pageTexts map[string]string) []string {
	names := make([]string, 0, len(pageTexts))
	for name, text := range pageTexts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ni, iok := parsePageSuffix(names[i])
		nj, jok := parsePageSuffix(names[j])
		if iok != jok {
			return iok
		}
		if iok && ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})
	return names
}

func parsePageSuffix(name string) (int, bool) {
	base := name
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	i := strings.LastIndexByte(base, '-')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// itemSnapshot is the compact item view sent to the verification model.
type itemSnapshot struct {
	LineNo        int    `json:"line_no"`
	Modellnummer  string `json:"modellnummer"`
	Artikelnummer string `json:"artikelnummer"`
	Menge         any    `json:"menge"`
}

func buildItemsSnapshot(items []*model.Item) []itemSnapshot {
	var out []itemSnapshot
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, itemSnapshot{
			LineNo:        it.LineNo,
			Modellnummer:  it.Text(model.FieldModellnummer),
			Artikelnummer: it.Text(model.FieldArtikelnummer),
			Menge:         quantityJSONValue(it.Quantity()),
		})
	}
	return out
}

func quantityJSONValue(qty float64) any {
	if qty == math.Trunc(qty) {
		return int(qty)
	}
	return qty
}

// verifyItemCodes cross-checks extracted item codes against the digital PDF
// text with a second, narrow model call. Everything that can go wrong here
// is non-critical: the order record keeps its extracted values and gains a
// warning instead.
func (p *Pipeline) verifyItemCodes(ctx context.Context, order *model.Order, b *branch.Branch, pageTexts map[string]string) {
	snapshot := buildItemsSnapshot(order.Items)
	if len(snapshot) == 0 {
		return
	}

	pages := orderedPageNames(pageTexts)
	if len(pages) == 0 {
		order.Warnings = append(order.Warnings, fmt.Sprintf(
			"%s item verification skipped: no digital PDF text available.", b.Label))
		return
	}

	payload := map[string]any{"items": snapshot}
	pageBlocks := make([]map[string]string, 0, len(pages))
	for _, name := range pages {
		pageBlocks = append(pageBlocks, map[string]string{"page": name, "text": pageTexts[name]})
	}
	payload["pages"] = pageBlocks
	userText, err := json.Marshal(payload)
	if err != nil {
		order.Warnings = append(order.Warnings, fmt.Sprintf(
			"%s item verification failed (non-critical): %v", b.Label, err))
		return
	}

	response, err := p.client.Verify(ctx, branch.BuildVerifyItemsInstructions(b.ID), string(userText))
	if err != nil {
		order.Warnings = append(order.Warnings, fmt.Sprintf(
			"%s item verification failed (non-critical): %v", b.Label, err))
		return
	}
	verification, err := llm.ParseJSONObject(response)
	if err != nil {
		order.Warnings = append(order.Warnings, fmt.Sprintf(
			"%s item verification failed (non-critical): %v", b.Label, err))
		return
	}

	p.applyItemCodeVerification(order, b, verification)
}

// applyItemCodeVerification applies verified corrections above the
// confidence gate. Any applied correction forces human review.
func (p *Pipeline) applyItemCodeVerification(order *model.Order, b *branch.Branch, verification map[string]any) bool {
	verifiedItems, ok := verification["verified_items"].([]any)
	if !ok || len(order.Items) == 0 {
		return false
	}

	if aux, ok := verification["warnings"].([]any); ok {
		for _, w := range aux {
			if text := strings.TrimSpace(fmt.Sprintf("%v", w)); text != "" && text != "<nil>" {
				order.Warnings = append(order.Warnings, fmt.Sprintf("%s verification note: %s", b.Label, text))
			}
		}
	}

	threshold := p.cfg.Pipeline.VerifyMinConfidence
	if threshold <= 0 {
		threshold = 0.75
	}

	byLine := make(map[int]*model.Item, len(order.Items))
	for i, it := range order.Items {
		if it == nil {
			continue
		}
		if it.LineNo <= 0 {
			it.LineNo = i + 1
		}
		byLine[it.LineNo] = it
	}

	derivedTag := b.ID + "_item_code_verification"
	applied := 0
	for _, rawItem := range verifiedItems {
		verified, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		lineNo := intFromAny(verified["line_no"])
		if lineNo <= 0 {
			continue
		}
		item := byLine[lineNo]
		if item == nil {
			continue
		}
		confidence := floatFromAny(verified["confidence"])
		if confidence < threshold {
			continue
		}
		reason := strings.TrimSpace(stringFromAny(verified["reason"]))

		for _, field := range []string{model.FieldModellnummer, model.FieldArtikelnummer, model.FieldMenge} {
			rawValue, present := verified[field]
			if !present {
				continue
			}
			entry := item.Ensure(field)
			previous := entry.Text()

			var updated model.Value
			var changed bool
			if field == model.FieldMenge {
				updated = coerceQuantityValue(rawValue)
				changed = coerceQuantityValue(entry.Value.String()).String() != updated.String()
			} else {
				updated = model.StringValue(strings.TrimSpace(stringFromAny(rawValue)))
				changed = previous != updated.String()
			}
			if !changed {
				continue
			}

			entry.SetDerived(updated, confidence, derivedTag)
			suffix := ""
			if reason != "" {
				suffix = "; reason=" + reason
			}
			order.Warnings = append(order.Warnings, fmt.Sprintf(
				"%s verification corrected item line %d field %s: '%s' -> '%s' (confidence=%.2f%s)",
				b.Label, lineNo, field, previous, updated.String(), confidence, suffix))
			applied++
		}
	}

	if applied == 0 {
		return false
	}
	order.Header.Ensure(model.FieldHumanReviewNeeded).
		SetDerived(model.BoolValue(true), 1.0, derivedTag)
	order.Warnings = append(order.Warnings, fmt.Sprintf(
		"%s verification applied automatic item-code correction(s); human review forced.", b.Label))
	return true
}

// coerceQuantityValue parses a verified quantity into a numeric value where
// possible, treating a lone comma as the decimal separator.
func coerceQuantityValue(raw any) model.Value {
	switch t := raw.(type) {
	case nil:
		return model.StringValue("")
	case float64:
		return model.FloatValue(t)
	case int:
		return model.IntValue(t)
	}
	text := strings.TrimSpace(stringFromAny(raw))
	if text == "" {
		return model.StringValue("")
	}
	compact := strings.ReplaceAll(text, " ", "")
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		compact = strings.ReplaceAll(compact, ",", ".")
	} else {
		compact = strings.ReplaceAll(compact, ",", "")
	}
	n, err := strconv.ParseFloat(compact, 64)
	if err != nil {
		return model.StringValue(text)
	}
	return model.FloatValue(n)
}

func intFromAny(raw any) int {
	switch t := raw.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func floatFromAny(raw any) float64 {
	switch t := raw.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

func stringFromAny(raw any) string {
	switch t := raw.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return model.FloatValue(t).String()
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprintf("%v", raw)
}
