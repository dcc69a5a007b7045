package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furnbridge/orderdesk/internal/model"
)

func exportTestOrder() *model.Order {
	order := model.NewOrder("msg-1", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	order.Header.Ensure(model.FieldTicketNumber).Value = model.StringValue("4711234")
	order.Header.Ensure(model.FieldKundennummer).Value = model.StringValue("51234")
	order.Header.Ensure(model.FieldKomNr).Value = model.StringValue("470011")
	order.Header.Ensure(model.FieldKomName).Value = model.StringValue("Wagner")
	order.Header.Ensure(model.FieldDeliveryWeek).Value = model.StringValue("KW 12/2026")
	order.Header.Ensure(model.FieldStoreName).Value = model.StringValue("XXXLutz Augsburg")
	order.Header.Ensure(model.FieldStoreAddress).Value = model.StringValue("Industriestraße 586159 Augsburg")
	order.Header.Ensure(model.FieldLieferanschrift).Value = model.StringValue("Im Gewerbepark 1\n76863 Herxheim")

	it := model.NewItem(1)
	it.Fields[model.FieldModellnummer] = model.NewEntry(model.StringValue("SWE3T"), model.SourcePDF)
	it.Fields[model.FieldArtikelnummer] = model.NewEntry(model.StringValue("74421"), model.SourcePDF)
	it.Fields[model.FieldMenge] = model.NewEntry(model.IntValue(2), model.SourcePDF)
	order.Items = []*model.Item{it}
	return order
}

func TestExportWritesBothFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	e := New(dir)

	paths, err := e.Export(exportTestOrder())
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "OrderInfo_4711234.xml"), paths[0])
	assert.Equal(t, filepath.Join(dir, "OrderArticleInfo_4711234.xml"), paths[1])

	info, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(info), `OrderID="4711234"`)
	assert.Contains(t, string(info), `CommissionNumber="470011"`)
	assert.Contains(t, string(info), `DateOfDelivery="202612WO"`)
	assert.Contains(t, string(info), `ASAP="1"`)
	assert.Contains(t, string(info), `StoreAddress="Industriestraße 5 86159 Augsburg"`)

	articles, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(articles), "<OrderID>4711234</OrderID>")
	assert.Contains(t, string(articles), "<ModelNumber>SWE3T</ModelNumber>")
	assert.Contains(t, string(articles), "<ArticleNumber>74421</ArticleNumber>")
	assert.Contains(t, string(articles), "<Quantity>2.0</Quantity>")
	assert.Contains(t, string(articles), "<Position>1</Position>")
}

func TestExportPrefersResolvedArticles(t *testing.T) {
	t.Parallel()
	order := exportTestOrder()
	order.Program = &model.Program{ProgramName: "Sinfonie", FurncloudID: "FC-77"}
	order.Articles = []*model.Article{
		{ArticleID: "CQSNI6TP-88421", Description: "Drehtürenschrank", Quantity: 1},
	}

	e := New(t.TempDir())
	paths, err := e.Export(order)
	require.NoError(t, err)

	articles, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(articles), "<ModelNumber>CQSN16TP</ModelNumber>")
	assert.Contains(t, string(articles), "<ArticleNumber>88421</ArticleNumber>")
	assert.Contains(t, string(articles), "<Model>Sinfonie</Model>")
	assert.Contains(t, string(articles), "<FurncloudID>FC-77</FurncloudID>")
	assert.Contains(t, string(articles), "<Description>Drehtürenschrank</Description>")
}

func TestBaseNameFallbacks(t *testing.T) {
	t.Parallel()

	order := exportTestOrder()
	assert.Equal(t, "4711234", BaseName(order))

	order.Header.Ensure(model.FieldTicketNumber).Value = model.StringValue("")
	assert.Equal(t, "470011", BaseName(order))

	order.Header.Ensure(model.FieldKomNr).Value = model.StringValue("")
	assert.Equal(t, "Wagner", BaseName(order))

	order.Header.Ensure(model.FieldKomName).Value = model.StringValue("Fam. Wagner / EG")
	assert.Equal(t, "Fam._Wagner_EG", BaseName(order))

	order.Header.Ensure(model.FieldKomName).Value = model.StringValue("")
	assert.Equal(t, "unknown", BaseName(order))
}

func TestFixArticleIDOCR(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"CQSNI6TP99": "CQSN16TP99",
		"CQI61620":   "CQ161620",
		"OI00-66979": "OJ00-66979",
		"ZBO0-38337": "ZB00-38337",
		"SWE3T":      "SWE3T",
		"":           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, FixArticleIDOCR(in), in)
	}
}

func TestSplitArticleID(t *testing.T) {
	t.Parallel()

	modelNum, articleNum := SplitArticleID("CQSNI6TP-88421")
	assert.Equal(t, "CQSN16TP", modelNum)
	assert.Equal(t, "88421", articleNum)

	modelNum, articleNum = SplitArticleID("SWE3T")
	assert.Equal(t, "SWE3T", modelNum)
	assert.Equal(t, "", articleNum)
}

func TestNormalizeAddressSpacing(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Hauptstr. 103D-46149 Oberhausen":  "Hauptstr. 103 D-46149 Oberhausen",
		"Am Ring 2238112 Braunschweig":     "Am Ring 22 38112 Braunschweig",
		"56355 NastättenGermany":           "56355 Nastätten Germany",
		"Im Gewerbepark 1\n76863 Herxheim": "Im Gewerbepark 1\n76863 Herxheim",
		"":                                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeAddressSpacing(in), in)
	}
}

func TestDeliveryWeekToXML(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"KW 12/2026":     "202612WO",
		"KW05/2026":      "202605WO",
		"2026 Week - 05": "202605WO",
		"Woche 7 / 2026": "202607WO",
		"KW 99/2026":     "",
		"unbekannt":      "",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, DeliveryWeekToXML(in), in)
	}
}

func TestManufacturerILN(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "4003769000008", ManufacturerILN("Rauch Möbelwerke"))
	assert.Equal(t, "4022956000006", ManufacturerILN("NOLTE Germersheim"))
	assert.Equal(t, "", ManufacturerILN("Unbekannter Hersteller"))
}
