package porta

import (
	"fmt"
	"sort"
	"strings"

	"github.com/furnbridge/orderdesk/internal/model"
)

type pairKey struct {
	Model   string
	Article string
}

func itemPair(it *model.Item) (pairKey, bool) {
	modelNo := strings.ToUpper(it.Text(model.FieldModellnummer))
	article := strings.ToUpper(it.Text(model.FieldArtikelnummer))
	if modelNo == "" || article == "" {
		return pairKey{}, false
	}
	return pairKey{Model: modelNo, Article: article}, true
}

func itemOccKey(it *model.Item) (occKey, bool) {
	pair, ok := itemPair(it)
	if !ok {
		return occKey{}, false
	}
	return occKey{
		Model:   pair.Model,
		Article: pair.Article,
		Qty:     qtyKey(qtyFromEntry(it.Fields[model.FieldMenge])),
	}, true
}

func countItemOccurrences(items []*model.Item) map[occKey]int {
	counts := make(map[occKey]int)
	for _, it := range items {
		if key, ok := itemOccKey(it); ok {
			counts[key]++
		}
	}
	return counts
}

// countNonDerivedItemPairs counts model/article pairs where at least one of
// the two code fields still carries its extraction source.
func countNonDerivedItemPairs(items []*model.Item) map[pairKey]int {
	counts := make(map[pairKey]int)
	for _, it := range items {
		pair, ok := itemPair(it)
		if !ok {
			continue
		}
		modelDerived := entrySourceDerived(it.Fields[model.FieldModellnummer])
		articleDerived := entrySourceDerived(it.Fields[model.FieldArtikelnummer])
		if modelDerived && articleDerived {
			continue
		}
		counts[pair]++
	}
	return counts
}

func entrySourceDerived(e *model.FieldEntry) bool {
	if e == nil {
		return true
	}
	source := strings.ToLower(strings.TrimSpace(string(e.Source)))
	return source == "" || source == string(model.SourceDerived)
}

func setReconciliationHumanReview(order *model.Order, derivedFrom string) {
	order.Header.Ensure(model.FieldHumanReviewNeeded).
		SetDerived(model.BoolValue(true), 1.0, derivedFrom)
}

// ReconcileComponentOccurrences appends items for every expected component
// occurrence from the PDF's "bestehend aus je:" blocks that the extraction
// missed, and returns how many items were added. Inferred occurrences (from
// parent backfill) are skipped when a non-derived item already covers the
// pair and no second explicit occurrence exists, to avoid duplicating a line
// the extractor merely quantified differently.
func ReconcileComponentOccurrences(order *model.Order, pageTexts map[string]string) int {
	blocks := componentBlocksFromPages(pageTexts)
	expected, backfilled := expectedOccurrencesWithBackfill(blocks)
	if len(expected) == 0 {
		return 0
	}

	existingCounts := countItemOccurrences(order.Items)
	nonDerivedPairs := countNonDerivedItemPairs(order.Items)
	explicitExpectedPairs := make(map[pairKey]int)
	for _, occ := range expected {
		if occ.Explicit && occ.Model != "" && occ.Article != "" {
			explicitExpectedPairs[pairKey{occ.Model, occ.Article}]++
		}
	}

	seen := make(map[occKey]int)
	var missing []occurrence
	skippedByGuard := 0
	for _, occ := range expected {
		if occ.Model == "" || occ.Article == "" {
			continue
		}
		key := occKey{occ.Model, occ.Article, qtyKey(occ.Qty)}
		seen[key]++
		if seen[key] <= existingCounts[key] {
			continue
		}
		pair := pairKey{occ.Model, occ.Article}
		if nonDerivedPairs[pair] > 0 &&
			explicitExpectedPairs[pair] <= 1 &&
			!occ.Explicit &&
			!occ.hasParent() {
			skippedByGuard++
			continue
		}
		missing = append(missing, occ)
	}

	if backfilled > 0 {
		order.Warnings = append(order.Warnings,
			"Porta reconciliation backfilled missing component(s) in repeated "+
				"'bestehend aus je:' block based on earlier matching block.")
	}
	if skippedByGuard > 0 {
		order.Warnings = append(order.Warnings, fmt.Sprintf(
			"Porta reconciliation skipped %d inferred component occurrence(s) "+
				"because a non-derived item already exists for the same model/article "+
				"and no second explicit 'bestehend aus je:' occurrence was found.",
			skippedByGuard))
	}

	if len(missing) == 0 {
		return 0
	}

	for _, occ := range missing {
		it := model.NewItem(0)
		it.Ensure(model.FieldModellnummer).SetDerived(model.StringValue(occ.Model), 1.0, DerivedReconciliation)
		it.Ensure(model.FieldArtikelnummer).SetDerived(model.StringValue(occ.Article), 1.0, DerivedReconciliation)
		it.Ensure(model.FieldMenge).SetDerived(model.FloatValue(occ.Qty), 1.0, DerivedReconciliation)
		order.Items = append(order.Items, it)
	}
	order.RenumberItems()

	insertedCounts := make(map[occKey]int)
	var insertedOrder []occKey
	for _, occ := range missing {
		key := occKey{occ.Model, occ.Article, qtyKey(occ.Qty)}
		if insertedCounts[key] == 0 {
			insertedOrder = append(insertedOrder, key)
		}
		insertedCounts[key]++
	}
	var summaryParts []string
	for _, key := range insertedOrder {
		summaryParts = append(summaryParts, fmt.Sprintf(
			"%s/%s qty=%s x%d", key.Model, key.Article, key.Qty, insertedCounts[key]))
	}
	summary := ""
	if len(summaryParts) > 6 {
		summary = strings.Join(summaryParts[:6], ", ") +
			fmt.Sprintf(", ... (+%d more)", len(summaryParts)-6)
	} else {
		summary = strings.Join(summaryParts, ", ")
	}

	order.Warnings = append(order.Warnings, fmt.Sprintf(
		"Porta component occurrence reconciliation added %d item(s) from "+
			"'bestehend aus je:' blocks: %s.", len(missing), summary))
	setReconciliationHumanReview(order, DerivedReconciliation)
	return len(missing)
}

// TrimComponentExcessItems removes extracted items that exceed the number of
// occurrences the PDF component blocks account for, preferring to drop
// derived reconciliation entries before extractor output.
func TrimComponentExcessItems(order *model.Order, pageTexts map[string]string) {
	if len(order.Items) == 0 {
		return
	}
	expected := occurrencesFromBlocks(componentBlocksFromPages(pageTexts))
	if len(expected) == 0 {
		return
	}

	expectedCounts := make(map[occKey]int)
	for _, occ := range expected {
		if occ.Model == "" || occ.Article == "" {
			continue
		}
		expectedCounts[occKey{occ.Model, occ.Article, qtyKey(occ.Qty)}]++
	}
	if len(expectedCounts) == 0 {
		return
	}

	itemsByKey := make(map[occKey][]int)
	for idx, it := range order.Items {
		if key, ok := itemOccKey(it); ok {
			itemsByKey[key] = append(itemsByKey[key], idx)
		}
	}

	toRemove := make(map[int]bool)
	for key, group := range itemsByKey {
		limit := expectedCounts[key]
		if limit <= 0 || len(group) <= limit {
			continue
		}
		sorted := append([]int(nil), group...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return trimPriority(order.Items[sorted[i]]) < trimPriority(order.Items[sorted[j]])
		})
		for _, idx := range sorted[limit:] {
			toRemove[idx] = true
		}
	}
	if len(toRemove) == 0 {
		return
	}

	kept := order.Items[:0]
	for idx, it := range order.Items {
		if !toRemove[idx] {
			kept = append(kept, it)
		}
	}
	removed := len(order.Items) - len(kept)
	order.Items = kept
	order.RenumberItems()
	order.Warnings = append(order.Warnings, fmt.Sprintf(
		"Porta: removed %d duplicate component item(s) based on PDF text.", removed))
}

// trimPriority orders items for removal: lower sorts first and is kept.
// Reconciliation-derived entries go first to the chopping block, then other
// derived entries, then extractor output.
func trimPriority(it *model.Item) int {
	e := it.Fields[model.FieldModellnummer]
	if e == nil {
		return 0
	}
	priority := 0
	if strings.Contains(e.DerivedFrom, DerivedReconciliation) {
		priority += 2
	}
	if e.Source == model.SourceDerived {
		priority++
	}
	return priority
}

// ApplyQuantityCorrections fixes item quantities from the PDF text when
// exactly one quantity is seen next to a model/article pair and it disagrees
// with the extracted menge.
func ApplyQuantityCorrections(order *model.Order, pageTexts map[string]string) {
	if len(order.Items) == 0 {
		return
	}
	qtyMap := quantityCandidates(pageTexts)
	if len(qtyMap) == 0 {
		return
	}

	for _, it := range order.Items {
		pair, ok := itemPair(it)
		if !ok {
			continue
		}
		candidates := qtyMap[pair]
		if len(candidates) != 1 {
			continue
		}
		var qty float64
		for _, q := range candidates {
			qty = q
		}
		entry := it.Ensure(model.FieldMenge)
		current := qtyFromEntry(entry)
		if qtyKey(current) == qtyKey(qty) {
			continue
		}
		entry.SetDerived(model.FloatValue(qty), 0.95, DerivedPDFQuantity)
		order.Warnings = append(order.Warnings, fmt.Sprintf(
			"Porta quantity corrected from PDF text for item line %d: %s -> %s.",
			it.LineNo, qtyString(current), qtyString(qty)))
	}
}

// quantityCandidates maps each model/article pair to the distinct quantities
// seen next to it in the page texts, keyed by canonical quantity string.
func quantityCandidates(pageTexts map[string]string) map[pairKey]map[string]float64 {
	qtyMap := make(map[pairKey]map[string]float64)
	for _, page := range OrderedPages(pageTexts) {
		lines := nonBlankLines(page.Text)
		index := 0
		for index < len(lines) {
			qty, consumed, ok := extractQtyMarker(lines, index)
			if !ok {
				index++
				continue
			}
			var pairs [][]string
			for _, candidate := range []int{index, index - 1, index + consumed, index + consumed + 1} {
				if candidate < 0 || candidate >= len(lines) {
					continue
				}
				pairs = componentPairRe.FindAllStringSubmatch(strings.ToUpper(lines[candidate]), -1)
				if len(pairs) > 0 {
					break
				}
			}
			for _, m := range pairs {
				if !hasLetter(m[1]) || isInvalidComponentModel(m[1]) {
					continue
				}
				key := pairKey{Model: m[1], Article: m[2]}
				if qtyMap[key] == nil {
					qtyMap[key] = make(map[string]float64)
				}
				qtyMap[key][qtyKey(qty)] = qty
			}
			index += consumed
		}
	}
	return qtyMap
}

// ApplyOJAccessoryBackfill fills empty artikelnummer fields on OJ accessory
// lines from "OJnn - NNNNN" pairs in the PDF text, when exactly one unclaimed
// article remains for the model. Any backfill forces human review.
func ApplyOJAccessoryBackfill(order *model.Order, pageTexts map[string]string) {
	if len(order.Items) == 0 {
		return
	}
	pages := OrderedPages(pageTexts)
	if len(pages) == 0 {
		return
	}

	expectedCounts := make(map[pairKey]int)
	for _, page := range pages {
		for _, m := range ojAccessoryPairRe.FindAllStringSubmatch(strings.ToUpper(page.Text), -1) {
			expectedCounts[pairKey{m[1], m[2]}]++
		}
	}
	if len(expectedCounts) == 0 {
		return
	}

	existingCounts := make(map[pairKey]int)
	for _, it := range order.Items {
		if pair, ok := itemPair(it); ok {
			existingCounts[pair]++
		}
	}

	remainingByModel := make(map[string]map[string]int)
	for pair, expected := range expectedCounts {
		remaining := expected - existingCounts[pair]
		if remaining <= 0 {
			continue
		}
		if remainingByModel[pair.Model] == nil {
			remainingByModel[pair.Model] = make(map[string]int)
		}
		remainingByModel[pair.Model][pair.Article] = remaining
	}
	if len(remainingByModel) == 0 {
		return
	}

	corrections := 0
	for index, it := range order.Items {
		itemModel := strings.ToUpper(it.Text(model.FieldModellnummer))
		itemArticle := strings.ToUpper(it.Text(model.FieldArtikelnummer))
		if itemModel == "" || itemArticle != "" {
			continue
		}
		if !strings.HasPrefix(itemModel, "OJ") && !strings.HasPrefix(itemModel, "0J") {
			continue
		}
		modelRemaining := remainingByModel[itemModel]
		if len(modelRemaining) == 0 {
			continue
		}
		var candidates []string
		for article, count := range modelRemaining {
			if count > 0 {
				candidates = append(candidates, article)
			}
		}
		if len(candidates) != 1 {
			continue
		}
		chosen := candidates[0]

		it.Ensure(model.FieldArtikelnummer).SetDerived(model.StringValue(chosen), 1.0, DerivedOJAccessoryBackfill)
		modelRemaining[chosen]--
		if modelRemaining[chosen] <= 0 {
			delete(modelRemaining, chosen)
		}

		lineNo := it.LineNo
		if lineNo == 0 {
			lineNo = index + 1
		}
		order.Warnings = append(order.Warnings, fmt.Sprintf(
			"Porta: filled missing artikelnummer for item line %d "+
				"from PDF accessory pair %s %s.", lineNo, itemModel, chosen))
		corrections++
	}

	if corrections > 0 {
		setReconciliationHumanReview(order, DerivedOJAccessoryBackfill)
	}
}
