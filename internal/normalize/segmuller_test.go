package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furnbridge/orderdesk/internal/model"
)

func segmullerRaw(komName, modell, artikel string) map[string]any {
	return map[string]any{
		"header": map[string]any{
			"kom_name": wrapped(komName, "pdf"),
		},
		"items": []any{
			map[string]any{
				"line_no":       1,
				"modellnummer":  wrapped(modell, "image"),
				"artikelnummer": wrapped(artikel, "image"),
				"menge":         wrapped(1, "image"),
			},
		},
	}
}

func TestSegmullerKomNameCleanup(t *testing.T) {
	t.Parallel()
	n := New(nil, nil)

	order := n.Normalize(segmullerRaw("22300 NUESSLER", "SWE3T", "74421"),
		Options{MessageID: "m1", ReceivedAt: testReceivedAt, DayFirst: true, BranchID: "segmuller"})

	entry := order.Header.Get(model.FieldKomName)
	require.NotNil(t, entry)
	assert.Equal(t, "NUESSLER", entry.Text())
	assert.Equal(t, "segmuller_kom_name_cleanup", entry.DerivedFrom)
	assert.Equal(t, model.SourceDerived, entry.Source)
}

func TestSegmullerKomNameCleanupOtherBranchUntouched(t *testing.T) {
	t.Parallel()
	n := New(nil, nil)

	order := n.Normalize(segmullerRaw("22300 NUESSLER", "SWE3T", "74421"),
		Options{MessageID: "m1", ReceivedAt: testReceivedAt, DayFirst: true, BranchID: "xxxlutz_default"})

	entry := order.Header.Get(model.FieldKomName)
	require.NotNil(t, entry)
	assert.Equal(t, "22300 NUESSLER", entry.Text())
	assert.Empty(t, entry.DerivedFrom)
}

func TestSegmullerItemCodeSplit(t *testing.T) {
	t.Parallel()
	n := New(nil, nil)

	order := n.Normalize(segmullerRaw("NUESSLER", "ZB00-38337", ""),
		Options{MessageID: "m1", ReceivedAt: testReceivedAt, DayFirst: true, BranchID: "segmuller"})

	require.Len(t, order.Items, 1)
	it := order.Items[0]
	assert.Equal(t, "ZB00", it.Text(model.FieldModellnummer))
	assert.Equal(t, "38337", it.Text(model.FieldArtikelnummer))
	assert.Equal(t, "segmuller_item_code_split", it.Fields[model.FieldModellnummer].DerivedFrom)
	assert.Equal(t, "segmuller_item_code_split", it.Fields[model.FieldArtikelnummer].DerivedFrom)
	assert.Contains(t, order.Warnings,
		"Segmüller item code split: item line 1 'ZB00-38337' -> modellnummer 'ZB00', artikelnummer '38337'.")
}

func TestSegmullerItemCodeSplitGuards(t *testing.T) {
	t.Parallel()
	n := New(nil, nil)

	cases := []struct {
		name    string
		modell  string
		artikel string
	}{
		{"article already present", "ZB00-38337", "46518"},
		{"tail not article shaped", "56847-ZB99", ""},
		{"letter suffix with trailing hyphen", "SINUNU0658XB-", ""},
		{"no hyphen", "SWE3T", ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			order := n.Normalize(segmullerRaw("NUESSLER", tc.modell, tc.artikel),
				Options{MessageID: "m1", ReceivedAt: testReceivedAt, DayFirst: true, BranchID: "segmuller"})

			require.Len(t, order.Items, 1)
			assert.Equal(t, tc.modell, order.Items[0].Text(model.FieldModellnummer))
			assert.Equal(t, tc.artikel, order.Items[0].Text(model.FieldArtikelnummer))
		})
	}
}

func TestSegmullerItemCodeSplitOtherBranchUntouched(t *testing.T) {
	t.Parallel()
	n := New(nil, nil)

	order := n.Normalize(segmullerRaw("NUESSLER", "ZB00-38337", ""),
		Options{MessageID: "m1", ReceivedAt: testReceivedAt, DayFirst: true, BranchID: "braun"})

	require.Len(t, order.Items, 1)
	assert.Equal(t, "ZB00-38337", order.Items[0].Text(model.FieldModellnummer))
	assert.Equal(t, "", order.Items[0].Text(model.FieldArtikelnummer))
}

func TestSegmullerItemCodeSplitHyphenatedLetterTail(t *testing.T) {
	t.Parallel()
	n := New(nil, nil)

	order := n.Normalize(segmullerRaw("NUESSLER", "SINUNU0658XB-89320C", ""),
		Options{MessageID: "m1", ReceivedAt: testReceivedAt, DayFirst: true, BranchID: "segmuller"})

	require.Len(t, order.Items, 1)
	assert.Equal(t, "SINUNU0658XB", order.Items[0].Text(model.FieldModellnummer))
	assert.Equal(t, "89320C", order.Items[0].Text(model.FieldArtikelnummer))
}
