package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furnbridge/orderdesk/internal/model"
)

func bgItem(artikel, modell string) *model.Item {
	it := model.NewItem(1)
	it.Fields[model.FieldArtikelnummer] = model.NewEntry(model.StringValue(artikel), model.SourcePDF)
	it.Fields[model.FieldModellnummer] = model.NewEntry(model.StringValue(modell), model.SourcePDF)
	return it
}

func TestNormalizeMomaxBGArtikel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "18098", NormalizeMomaxBGArtikel("180 98"))
	assert.Equal(t, "74430", NormalizeMomaxBGArtikel(" 74430 "))
	assert.Equal(t, "74430XB", NormalizeMomaxBGArtikel("74430XB"))
	assert.Equal(t, "", NormalizeMomaxBGArtikel(""))
}

func TestNormalizeMomaxBGModell(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CQ9191", NormalizeMomaxBGModell("CQ 91/91"))
	assert.Equal(t, "ZB99", NormalizeMomaxBGModell("ZB99"))
}

func TestApplyMomaxBGStrictItemCodeCorrections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		artikel     string
		modell      string
		wantArtikel string
		wantModell  string
		wantDerived string
	}{
		{
			name:        "suffix relocation from article",
			artikel:     "74430XB",
			modell:      "CQ9191",
			wantArtikel: "74430",
			wantModell:  "CQ9191XB",
			wantDerived: DerivedMomaxBGSuffixRelocation,
		},
		{
			name:        "swapped article and model",
			artikel:     "CQ9191",
			modell:      "74430XB",
			wantArtikel: "74430",
			wantModell:  "CQ9191XB",
			wantDerived: DerivedMomaxBGSuffixRelocation,
		},
		{
			name:        "standalone suffix article",
			artikel:     "XP",
			modell:      "CQ9191 74430",
			wantArtikel: "74430",
			wantModell:  "CQ9191XP",
			wantDerived: DerivedMomaxBGSuffixRelocation,
		},
		{
			name:        "short numeric article wrapped off model",
			artikel:     "180",
			modell:      "74430XBCQ",
			wantArtikel: "74430",
			wantModell:  "CQ180XB",
			wantDerived: DerivedMomaxBGSuffixRelocation,
		},
		{
			name:        "slash tokens rebuild",
			artikel:     "ZB99/76403",
			modell:      "",
			wantArtikel: "76403",
			wantModell:  "ZB99",
			wantDerived: DerivedMomaxBGStrictCodeParser,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			order := model.NewOrder("m1", testReceivedAt)
			order.Items = []*model.Item{bgItem(tc.artikel, tc.modell)}

			changed := ApplyMomaxBGStrictItemCodeCorrections(order)
			require.Equal(t, 1, changed)

			it := order.Items[0]
			assert.Equal(t, tc.wantArtikel, it.Text(model.FieldArtikelnummer))
			assert.Equal(t, tc.wantModell, it.Text(model.FieldModellnummer))
			assert.Equal(t, tc.wantDerived, it.Fields[model.FieldArtikelnummer].DerivedFrom)
			assert.Equal(t, model.SourceDerived, it.Fields[model.FieldArtikelnummer].Source)
			assert.Equal(t, 1.0, it.Fields[model.FieldArtikelnummer].Confidence)
		})
	}

	t.Run("clean pair untouched", func(t *testing.T) {
		t.Parallel()
		order := model.NewOrder("m1", testReceivedAt)
		order.Items = []*model.Item{bgItem("76403", "ZB99")}

		assert.Equal(t, 0, ApplyMomaxBGStrictItemCodeCorrections(order))
		assert.Equal(t, "76403", order.Items[0].Text(model.FieldArtikelnummer))
		assert.Equal(t, "ZB99", order.Items[0].Text(model.FieldModellnummer))
		assert.Equal(t, model.SourcePDF, order.Items[0].Fields[model.FieldArtikelnummer].Source)
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		order := model.NewOrder("m1", testReceivedAt)
		order.Items = []*model.Item{bgItem("74430XB", "CQ9191")}

		require.Equal(t, 1, ApplyMomaxBGStrictItemCodeCorrections(order))
		assert.Equal(t, 0, ApplyMomaxBGStrictItemCodeCorrections(order))
		assert.Equal(t, "74430", order.Items[0].Text(model.FieldArtikelnummer))
		assert.Equal(t, "CQ9191XB", order.Items[0].Text(model.FieldModellnummer))
	})
}

func TestSplitMomaxBGCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      string
		artikel string
		modell  string
		ok      bool
	}{
		{"slash", "ZB99/76403", "76403", "ZB99", true},
		{"multi slash", "CQ/9191/74430", "74430", "CQ9191", true},
		{"hyphen model-article", "CQ9191-74430", "74430", "CQ9191", true},
		{"hyphen reversed accessory", "74430-XB", "74430", "XB", true},
		{"whitespace pair", "76403 ZB99", "76403", "ZB99", true},
		{"plain token", "76403", "", "", false},
		{"empty", "", "", "", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			artikel, modell, ok := splitMomaxBGCode(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.artikel, artikel)
			assert.Equal(t, tc.modell, modell)
		})
	}
}
