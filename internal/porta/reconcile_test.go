package porta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furnbridge/orderdesk/internal/model"
)

var portaReceivedAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func portaItem(lineNo int, modelNo, article string, qty float64) *model.Item {
	it := model.NewItem(lineNo)
	it.Fields[model.FieldModellnummer] = model.NewEntry(model.StringValue(modelNo), model.SourcePDF)
	it.Fields[model.FieldArtikelnummer] = model.NewEntry(model.StringValue(article), model.SourcePDF)
	it.Fields[model.FieldMenge] = model.NewEntry(model.FloatValue(qty), model.SourcePDF)
	return it
}

func TestReconcileComponentOccurrences(t *testing.T) {
	t.Parallel()

	order := model.NewOrder("msg-1", portaReceivedAt)
	order.Items = []*model.Item{
		portaItem(1, "SWE3T", "74421", 1),
		portaItem(2, "ANB1", "74422", 2),
	}

	added := ReconcileComponentOccurrences(order, map[string]string{
		"order-1.png": portaPageOne,
		"order-2.png": portaPageTwo,
	})

	assert.Equal(t, 2, added)
	require.Len(t, order.Items, 4)
	for i, it := range order.Items {
		assert.Equal(t, i+1, it.LineNo)
	}

	third := order.Items[2]
	assert.Equal(t, "SWE3T", third.Text(model.FieldModellnummer))
	assert.Equal(t, "74421", third.Text(model.FieldArtikelnummer))
	assert.Equal(t, DerivedReconciliation, third.Fields[model.FieldModellnummer].DerivedFrom)
	assert.Equal(t, model.SourceDerived, third.Fields[model.FieldModellnummer].Source)
	assert.Equal(t, 1.0, third.Quantity())

	assert.True(t, order.Header.Bool(model.FieldHumanReviewNeeded))
	assert.Equal(t, DerivedReconciliation, order.Header.Get(model.FieldHumanReviewNeeded).DerivedFrom)

	assert.Contains(t, order.Warnings,
		"Porta reconciliation backfilled missing component(s) in repeated "+
			"'bestehend aus je:' block based on earlier matching block.")
	assert.Contains(t, order.Warnings,
		"Porta component occurrence reconciliation added 2 item(s) from "+
			"'bestehend aus je:' blocks: SWE3T/74421 qty=1 x1, ANB1/74422 qty=2 x1.")
}

func TestReconcileComponentOccurrencesAlreadyComplete(t *testing.T) {
	t.Parallel()

	order := model.NewOrder("msg-1", portaReceivedAt)
	order.Items = []*model.Item{
		portaItem(1, "SWE3T", "74421", 1),
		portaItem(2, "ANB1", "74422", 2),
	}

	added := ReconcileComponentOccurrences(order, map[string]string{
		"order-1.png": portaPageOne,
	})

	assert.Equal(t, 0, added)
	assert.Len(t, order.Items, 2)
	assert.False(t, order.Header.Bool(model.FieldHumanReviewNeeded))
}

func TestTrimComponentExcessItems(t *testing.T) {
	t.Parallel()

	extracted := portaItem(1, "SWE3T", "74421", 1)
	duplicate := portaItem(2, "SWE3T", "74421", 1)
	duplicate.Fields[model.FieldModellnummer].SetDerived(
		model.StringValue("SWE3T"), 1.0, DerivedReconciliation)

	order := model.NewOrder("msg-1", portaReceivedAt)
	order.Items = []*model.Item{extracted, duplicate}

	TrimComponentExcessItems(order, map[string]string{"order-2.png": portaPageTwo})

	require.Len(t, order.Items, 1)
	assert.Same(t, extracted, order.Items[0])
	assert.Equal(t, 1, order.Items[0].LineNo)
	assert.Contains(t, order.Warnings,
		"Porta: removed 1 duplicate component item(s) based on PDF text.")
}

func TestApplyQuantityCorrections(t *testing.T) {
	t.Parallel()

	order := model.NewOrder("msg-1", portaReceivedAt)
	order.Items = []*model.Item{portaItem(1, "SWE3T", "74421", 2)}

	ApplyQuantityCorrections(order, map[string]string{"order-2.png": portaPageTwo})

	entry := order.Items[0].Fields[model.FieldMenge]
	assert.Equal(t, 1.0, order.Items[0].Quantity())
	assert.Equal(t, model.SourceDerived, entry.Source)
	assert.Equal(t, 0.95, entry.Confidence)
	assert.Equal(t, DerivedPDFQuantity, entry.DerivedFrom)
	assert.Contains(t, order.Warnings,
		"Porta quantity corrected from PDF text for item line 1: 2 -> 1.")
}

func TestApplyQuantityCorrectionsAmbiguousQuantitiesUntouched(t *testing.T) {
	t.Parallel()

	order := model.NewOrder("msg-1", portaReceivedAt)
	order.Items = []*model.Item{portaItem(1, "SWE3T", "74421", 2)}

	pageText := "1 STK\nSWE3T 74421\n3 STK\nSWE3T 74421\n"
	ApplyQuantityCorrections(order, map[string]string{"order-1.png": pageText})

	assert.Equal(t, 2.0, order.Items[0].Quantity())
	assert.Empty(t, order.Warnings)
}

func TestApplyOJAccessoryBackfill(t *testing.T) {
	t.Parallel()

	accessory := model.NewItem(1)
	accessory.Fields[model.FieldModellnummer] = model.NewEntry(model.StringValue("OJ12"), model.SourcePDF)

	order := model.NewOrder("msg-1", portaReceivedAt)
	order.Items = []*model.Item{accessory}

	ApplyOJAccessoryBackfill(order, map[string]string{"order-1.png": "Zubehör OJ12 - 74425\n"})

	entry := accessory.Fields[model.FieldArtikelnummer]
	assert.Equal(t, "74425", entry.Text())
	assert.Equal(t, model.SourceDerived, entry.Source)
	assert.Equal(t, 1.0, entry.Confidence)
	assert.Equal(t, DerivedOJAccessoryBackfill, entry.DerivedFrom)

	assert.True(t, order.Header.Bool(model.FieldHumanReviewNeeded))
	assert.Equal(t, DerivedOJAccessoryBackfill, order.Header.Get(model.FieldHumanReviewNeeded).DerivedFrom)
	assert.Contains(t, order.Warnings,
		"Porta: filled missing artikelnummer for item line 1 from PDF accessory pair OJ12 74425.")
}

func TestApplyOJAccessoryBackfillAmbiguousCandidatesUntouched(t *testing.T) {
	t.Parallel()

	accessory := model.NewItem(1)
	accessory.Fields[model.FieldModellnummer] = model.NewEntry(model.StringValue("OJ12"), model.SourcePDF)

	order := model.NewOrder("msg-1", portaReceivedAt)
	order.Items = []*model.Item{accessory}

	ApplyOJAccessoryBackfill(order, map[string]string{
		"order-1.png": "OJ12 - 74425\nOJ12 - 74426\n",
	})

	assert.Equal(t, "", accessory.Text(model.FieldArtikelnummer))
	assert.Empty(t, order.Warnings)
}
