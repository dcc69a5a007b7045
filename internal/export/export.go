// Package export writes the two per-record XML files consumed by the order
// entry system: OrderInfo_<base>.xml with the header attributes and
// OrderArticleInfo_<base>.xml with the item list.
package export

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/furnbridge/orderdesk/internal/model"
)

// manufacturerILNs maps known manufacturer names to their GLN-style ILN.
var manufacturerILNs = map[string]string{
	"staud":   "4039262000004",
	"rauch":   "4003769000008",
	"nolte":   "4022956000006",
	"wimex":   "4011808000003",
	"express": "4013227000009",
}

// ManufacturerILN resolves a manufacturer ILN from a free-form name, or ""
// when the name matches no known manufacturer.
func ManufacturerILN(name string) string {
	lowered := strings.ToLower(name)
	for key, iln := range manufacturerILNs {
		if strings.Contains(lowered, key) {
			return iln
		}
	}
	return ""
}

var filenameSafeRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeForFilename(value string) string {
	s := filenameSafeRe.ReplaceAllString(strings.TrimSpace(value), "_")
	return strings.Trim(s, "_")
}

// BaseName returns the file base name: ticket_number, else kom_nr, else
// kom_name, else "unknown".
func BaseName(order *model.Order) string {
	for _, field := range []string{model.FieldTicketNumber, model.FieldKomNr, model.FieldKomName} {
		if s := sanitizeForFilename(order.Header.Text(field)); s != "" {
			return s
		}
	}
	return "unknown"
}

var (
	countryPrefixRe = regexp.MustCompile(`(\d)([A-Z]{1,2}-\d)`)
	gluedZipRe      = regexp.MustCompile(`(^|[^-\d])(\d{1,3})(\d{5})($|[\sA-Z])`)
	countryNameRe   = regexp.MustCompile(`([a-zA-ZäöüÄÖÜß/])(Germany|Deutschland|Austria|Österreich|Switzerland|Schweiz|France|Frankreich|Belgium|Belgien|Netherlands|Niederlande|Italy|Italien)($|\s)`)
)

// NormalizeAddressSpacing repairs missing spaces that survive extraction:
// a country-code prefix glued to a house number ("103D-46149"), a house
// number glued to a 5-digit ZIP ("2238112"), and a country name glued to the
// city ("NastättenGermany").
func NormalizeAddressSpacing(address string) string {
	if address == "" {
		return address
	}
	address = countryPrefixRe.ReplaceAllString(address, "$1 $2")
	address = gluedZipRe.ReplaceAllString(address, "$1$2 $3$4")
	address = countryNameRe.ReplaceAllString(address, "$1 $2$3")
	return address
}

// FixArticleIDOCR repairs character swaps the scanners make in article id
// prefixes: CQSNI->CQSN1, CQI6->CQ16, OI00->OJ00, ZBO0->ZB00.
func FixArticleIDOCR(articleID string) string {
	switch {
	case strings.HasPrefix(articleID, "CQSNI"):
		return "CQSN1" + articleID[5:]
	case strings.HasPrefix(articleID, "CQI6"):
		return "CQ16" + articleID[4:]
	case strings.HasPrefix(articleID, "OI00"):
		return "OJ00" + articleID[4:]
	case strings.HasPrefix(articleID, "ZBO0"):
		return "ZB00" + articleID[4:]
	}
	return articleID
}

// SplitArticleID splits an article id on the first hyphen into model and
// article numbers, after OCR repair.
func SplitArticleID(articleID string) (modelNumber, articleNumber string) {
	fixed := FixArticleIDOCR(articleID)
	if idx := strings.Index(fixed, "-"); idx >= 0 {
		return fixed[:idx], fixed[idx+1:]
	}
	return fixed, ""
}

var (
	weekWordRe  = regexp.MustCompile(`(?i)^(\d{4})\s*Week\s*-\s*(\d{1,2})\b`)
	weekTokenRe = regexp.MustCompile(`(?i)(?:KW|Woche)\s*(\d{1,2})\s*[/.-]?\s*(\d{4})`)
)

// DeliveryWeekToXML converts a delivery week string ("KW 5/2026" or
// "2026 Week - 05") to the order system's YYYYWW"WO" form, or "" when the
// input carries no recognizable week.
func DeliveryWeekToXML(value string) string {
	s := strings.TrimSpace(value)
	if s == "" {
		return ""
	}
	if m := weekWordRe.FindStringSubmatch(s); m != nil {
		return formatWeek(m[1], m[2])
	}
	if m := weekTokenRe.FindStringSubmatch(s); m != nil {
		return formatWeek(m[2], m[1])
	}
	return ""
}

func formatWeek(year, week string) string {
	var y, w int
	fmt.Sscanf(year, "%d", &y)
	fmt.Sscanf(week, "%d", &w)
	if w < 1 || w > 53 {
		return ""
	}
	return fmt.Sprintf("%d%02dWO", y, w)
}

type orderInfoDoc struct {
	XMLName xml.Name       `xml:"Order"`
	Info    orderInfoAttrs `xml:"OrderInformations"`
}

type orderInfoAttrs struct {
	OrderID                    string `xml:"OrderID,attr"`
	DealerNumberAtManufacturer string `xml:"DealerNumberAtManufacturer,attr"`
	CommissionNumber           string `xml:"CommissionNumber,attr"`
	CommissionName             string `xml:"CommissionName,attr"`
	DateOfDelivery             string `xml:"DateOfDelivery,attr"`
	StoreName                  string `xml:"StoreName,attr"`
	StoreAddress               string `xml:"StoreAddress,attr"`
	Seller                     string `xml:"Seller,attr"`
	DeliveryAddress            string `xml:"DeliveryAddress,attr"`
	ASAP                       string `xml:"ASAP,attr"`
}

type articleInfoDoc struct {
	XMLName xml.Name  `xml:"OrderItems"`
	OrderID string    `xml:"OrderID"`
	Items   itemsElem `xml:"Items"`
}

type itemsElem struct {
	Item []itemElem `xml:"Item"`
}

type itemElem struct {
	Position    int    `xml:"Position"`
	ModelNumber string `xml:"ModelNumber"`
	ArticleNum  string `xml:"ArticleNumber"`
	Model       string `xml:"Model"`
	Quantity    string `xml:"Quantity"`
	FurncloudID string `xml:"FurncloudID"`
	Description string `xml:"Description"`
}

// Exporter writes record XML files into its output directory.
type Exporter struct {
	outputDir string
}

func New(outputDir string) *Exporter {
	return &Exporter{outputDir: outputDir}
}

// Export writes both XML files for the record and returns their paths.
func (e *Exporter) Export(order *model.Order) ([]string, error) {
	if order == nil {
		return nil, eris.New("export: nil record")
	}
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "export: create output dir")
	}
	base := BaseName(order)

	infoPath := filepath.Join(e.outputDir, fmt.Sprintf("OrderInfo_%s.xml", base))
	if err := writeXML(infoPath, buildOrderInfo(order)); err != nil {
		return nil, err
	}
	articlePath := filepath.Join(e.outputDir, fmt.Sprintf("OrderArticleInfo_%s.xml", base))
	if err := writeXML(articlePath, buildArticleInfo(order)); err != nil {
		return nil, err
	}
	return []string{infoPath, articlePath}, nil
}

func buildOrderInfo(order *model.Order) orderInfoDoc {
	h := order.Header
	return orderInfoDoc{
		Info: orderInfoAttrs{
			OrderID:                    h.Text(model.FieldTicketNumber),
			DealerNumberAtManufacturer: h.Text(model.FieldKundennummer),
			CommissionNumber:           h.Text(model.FieldKomNr),
			CommissionName:             h.Text(model.FieldKomName),
			DateOfDelivery:             DeliveryWeekToXML(h.Text(model.FieldDeliveryWeek)),
			StoreName:                  h.Text(model.FieldStoreName),
			StoreAddress:               NormalizeAddressSpacing(h.Text(model.FieldStoreAddress)),
			Seller:                     h.Text(model.FieldSeller),
			DeliveryAddress:            NormalizeAddressSpacing(h.Text(model.FieldLieferanschrift)),
			ASAP:                       "1",
		},
	}
}

func buildArticleInfo(order *model.Order) articleInfoDoc {
	doc := articleInfoDoc{OrderID: order.Header.Text(model.FieldTicketNumber)}

	var programName, programFurncloud string
	if order.Program != nil {
		programName = order.Program.ProgramName
		programFurncloud = order.Program.FurncloudID
	}

	if len(order.Articles) > 0 {
		for i, article := range order.Articles {
			modelNum, articleNum := SplitArticleID(article.ArticleID)
			doc.Items.Item = append(doc.Items.Item, itemElem{
				Position:    i + 1,
				ModelNumber: modelNum,
				ArticleNum:  articleNum,
				Model:       programName,
				Quantity:    formatQuantity(article.Quantity),
				FurncloudID: programFurncloud,
				Description: article.Description,
			})
		}
		return doc
	}

	for i, it := range order.Items {
		if it == nil {
			continue
		}
		furncloud := it.Text(model.FieldFurncloudID)
		if furncloud == "" {
			furncloud = programFurncloud
		}
		doc.Items.Item = append(doc.Items.Item, itemElem{
			Position:    i + 1,
			ModelNumber: FixArticleIDOCR(it.Text(model.FieldModellnummer)),
			ArticleNum:  it.Text(model.FieldArtikelnummer),
			Model:       programName,
			Quantity:    formatQuantity(it.Quantity()),
			FurncloudID: furncloud,
			Description: "",
		})
	}
	return doc
}

func formatQuantity(qty float64) string {
	if qty <= 0 {
		qty = 1
	}
	return fmt.Sprintf("%.1f", qty)
}

func writeXML(path string, doc any) error {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "export: marshal %s", filepath.Base(path))
	}
	content := append([]byte(xml.Header), data...)
	content = append(content, '\n')
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", filepath.Base(path))
	}
	return nil
}
