package normalize

import (
	"strings"

	"github.com/furnbridge/orderdesk/internal/model"
)

// headerFieldAliases remaps English and alternative field names the model
// sometimes emits onto the canonical German names. The remap is a safety net:
// without it values arriving under "customer_number" would be silently lost.
var headerFieldAliases = map[string]string{
	"ticketnumber": model.FieldTicketNumber,
	"ticket_no":    model.FieldTicketNumber,
	"ticket_id":    model.FieldTicketNumber,
	"order_id":     model.FieldTicketNumber,

	"customer_number":   model.FieldKundennummer,
	"customernumber":    model.FieldKundennummer,
	"customer_no":       model.FieldKundennummer,
	"customerno":        model.FieldKundennummer,
	"supplier_number":   model.FieldKundennummer,
	"suppliernumber":    model.FieldKundennummer,
	"lieferantennummer": model.FieldKundennummer,
	"kd_nr":             model.FieldKundennummer,
	"kdnr":              model.FieldKundennummer,

	"address_number":          model.FieldAdressnummer,
	"addressnumber":           model.FieldAdressnummer,
	"address_no":              model.FieldAdressnummer,
	"delivery_address_number": model.FieldAdressnummer,

	"gln": model.FieldILN,

	"delivery_iln":          model.FieldILNAnl,
	"delivery_location_iln": model.FieldILNAnl,

	"store_iln":   model.FieldILNFil,
	"branch_iln":  model.FieldILNFil,
	"filiale_iln": model.FieldILNFil,

	"project_number":    model.FieldKomNr,
	"projectnumber":     model.FieldKomNr,
	"project_no":        model.FieldKomNr,
	"projectno":         model.FieldKomNr,
	"commission_number": model.FieldKomNr,
	"commissionnumber":  model.FieldKomNr,
	"commission_no":     model.FieldKomNr,
	"kommission":        model.FieldKomNr,
	"kommissions_nr":    model.FieldKomNr,
	"order_number":      model.FieldKomNr,

	"project_name":    model.FieldKomName,
	"projectname":     model.FieldKomName,
	"commission_name": model.FieldKomName,
	"commissionname":  model.FieldKomName,
	"kommissionsname": model.FieldKomName,

	// Full company or branch name belongs in store_name, not kom_name.
	"customer_name": model.FieldStoreName,

	"delivery_date": model.FieldLiefertermin,
	"deliverydate":  model.FieldLiefertermin,
	"delivery_term": model.FieldLiefertermin,
	"lieferdatum":   model.FieldLiefertermin,
	"lieferwoche":   model.FieldLiefertermin,

	"requested_date": model.FieldWunschtermin,
	"requesteddate":  model.FieldWunschtermin,
	"desired_date":   model.FieldWunschtermin,
	"wunschdatum":    model.FieldWunschtermin,

	"delivery_address": model.FieldLieferanschrift,
	"deliveryaddress":  model.FieldLieferanschrift,
	"shipping_address": model.FieldLieferanschrift,
	"empfänger":        model.FieldLieferanschrift,
	"warenempfänger":   model.FieldLieferanschrift,
	"bestellanschrift": model.FieldLieferanschrift,

	"order_date":    model.FieldBestelldatum,
	"orderdate":     model.FieldBestelldatum,
	"datum":         model.FieldBestelldatum,
	"belegdatum":    model.FieldBestelldatum,
	"document_date": model.FieldBestelldatum,

	"route": model.FieldTour,

	"human_review":  model.FieldHumanReviewNeeded,
	"review_needed": model.FieldHumanReviewNeeded,
}

var itemFieldAliases = map[string]string{
	"item_number":    model.FieldArtikelnummer,
	"itemnumber":     model.FieldArtikelnummer,
	"item_no":        model.FieldArtikelnummer,
	"itemno":         model.FieldArtikelnummer,
	"article_number": model.FieldArtikelnummer,
	"articlenumber":  model.FieldArtikelnummer,
	"article_no":     model.FieldArtikelnummer,
	"art_nr":         model.FieldArtikelnummer,
	"artnr":          model.FieldArtikelnummer,
	"artikel_nr":     model.FieldArtikelnummer,
	"sku":            model.FieldArtikelnummer,
	"product_number": model.FieldArtikelnummer,

	"model_number": model.FieldModellnummer,
	"modelnumber":  model.FieldModellnummer,
	"model_no":     model.FieldModellnummer,
	"modelno":      model.FieldModellnummer,
	"model":        model.FieldModellnummer,
	"modell":       model.FieldModellnummer,
	"type":         model.FieldModellnummer,
	"typ":          model.FieldModellnummer,

	"quantity": model.FieldMenge,
	"qty":      model.FieldMenge,
	"amount":   model.FieldMenge,
	"count":    model.FieldMenge,
	"anzahl":   model.FieldMenge,
	"stueck":   model.FieldMenge,
	"stk":      model.FieldMenge,

	"furncloud":   model.FieldFurncloudID,
	"furncloudid": model.FieldFurncloudID,
	"fc_id":       model.FieldFurncloudID,
	"fcid":        model.FieldFurncloudID,
}

func canonicalKey(key string, aliases map[string]string) string {
	lookup := strings.ToLower(key)
	lookup = strings.ReplaceAll(lookup, "-", "_")
	lookup = strings.ReplaceAll(lookup, " ", "_")
	if target, ok := aliases[lookup]; ok {
		return target
	}
	if target, ok := aliases[strings.ToLower(key)]; ok {
		return target
	}
	return key
}

// entryFromRaw turns a decoded JSON value into a field entry. Objects with a
// "value" key are read as wrapped entries, anything else becomes a derived
// entry around the bare scalar.
func entryFromRaw(raw any) *model.FieldEntry {
	if m, ok := raw.(map[string]any); ok {
		if _, has := m["value"]; has {
			e := &model.FieldEntry{Value: model.ValueOf(m["value"])}
			if s, ok := m["source"].(string); ok {
				e.Source = model.Source(s)
			}
			if c, ok := m["confidence"].(float64); ok {
				e.Confidence = c
			}
			if d, ok := m["derived_from"].(string); ok {
				e.DerivedFrom = d
			}
			return e
		}
	}
	v := model.ValueOf(raw)
	conf := 0.9
	if v.IsEmpty() {
		conf = 0.0
	}
	return &model.FieldEntry{Value: v, Source: model.SourceDerived, Confidence: conf}
}

func decodeHeader(raw any) model.Header {
	header := make(model.Header, len(model.HeaderFields))
	m, ok := raw.(map[string]any)
	if !ok {
		return header
	}
	for key, value := range m {
		header[canonicalKey(key, headerFieldAliases)] = entryFromRaw(value)
	}
	return header
}

func decodeItems(raw any) []*model.Item {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	items := make([]*model.Item, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			items = append(items, &model.Item{Fields: map[string]*model.FieldEntry{}})
			continue
		}
		it := &model.Item{Fields: make(map[string]*model.FieldEntry, len(m))}
		for key, value := range m {
			if key == "line_no" {
				if f, ok := value.(float64); ok {
					it.LineNo = int(f)
				}
				continue
			}
			it.Fields[canonicalKey(key, itemFieldAliases)] = entryFromRaw(value)
		}
		items = append(items, it)
	}
	return items
}

func decodeProgram(raw any) *model.Program {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	p := &model.Program{}
	if s, ok := m["program_name"].(string); ok {
		p.ProgramName = s
	}
	if s, ok := m["furncloud_id"].(string); ok {
		p.FurncloudID = s
	}
	if p.ProgramName == "" && p.FurncloudID == "" {
		return nil
	}
	return p
}

func decodeStrings(raw any) []string {
	switch t := raw.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}
