package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/furnbridge/orderdesk/internal/model"
)

// AddressInfo is one resolved ILN mapping row.
type AddressInfo struct {
	FormattedAddress string
	Company          string
	FilialeHint      string
}

// CustomerMatch is one resolved customer-master row.
type CustomerMatch struct {
	Kundennummer string
	Adressnummer string
	Tour         string
}

// CustomerQuery carries everything the address matcher can use to
// disambiguate between customer rows sharing a postcode.
type CustomerQuery struct {
	Address        string
	KomName        string
	IsJoop         bool
	ClientHint     string
	ILNCompany     string
	ILNFilialeHint string
}

// Lookup resolves customers and addresses against the customer-master files.
// A nil match result means not found; notes are advisory warnings to surface
// on the order.
type Lookup interface {
	AddressByILN(iln string) *AddressInfo
	ILNByAddress(address string) string
	CustomerByAddress(q CustomerQuery) (*CustomerMatch, []string)
	CustomerByKundennummer(kundennummer string) *CustomerMatch
	MomaxBGCustomerByAddress(address, storeName string) (*CustomerMatch, []string)
	KundennummerByILN(iln string) string
	IsTourValid(tour string) bool
}

// DeliveryWeek computes the planned delivery calendar week from order date
// and tour schedule.
type DeliveryWeek interface {
	Calculate(bestelldatum, tour, wunschtermin, clientName string) string
}

var kdnrDigitsRe = regexp.MustCompile(`\D`)

// enrichFromExcel fills missing customer fields from the customer-master
// lookups. ILN-derived addresses take precedence over raw email text so that
// downstream filtering always sees the normalized form.
func (n *Normalizer) enrichFromExcel(header model.Header, warnings []string, emailBody, sender string, isMomaxBG bool) []string {
	if n.lookup == nil {
		return warnings
	}

	deliveryAddress := header.Text(model.FieldLieferanschrift)
	storeAddress := header.Text(model.FieldStoreAddress)

	// 1. ILN-Anl (delivery location) -> lieferanschrift, and copy into iln.
	ilnAnl := header.Text(model.FieldILNAnl)
	if !isMomaxBG && ilnAnl != "" {
		if info := n.lookup.AddressByILN(ilnAnl); info != nil {
			header.Ensure(model.FieldLieferanschrift).SetDerived(model.StringValue(info.FormattedAddress), 1.0, "iln_excel_lookup")
			deliveryAddress = info.FormattedAddress
		} else {
			warnings = append(warnings, fmt.Sprintf("ILN-Anl %s not found in Excel mapping", ilnAnl))
		}
		if cur := header.Text(model.FieldILN); cur == "" || cur != ilnAnl {
			header.Ensure(model.FieldILN).SetDerived(model.StringValue(ilnAnl), 1.0, "iln_anl_copy")
		}
	}

	// 2. ILN-Fil (store branch) -> store_address plus company and filiale
	// hints for Kundennummer disambiguation.
	var ilnCompany, ilnFilialeHint string
	ilnFil := header.Text(model.FieldILNFil)
	if !isMomaxBG && ilnFil != "" {
		if info := n.lookup.AddressByILN(ilnFil); info != nil {
			header.Ensure(model.FieldStoreAddress).SetDerived(model.StringValue(info.FormattedAddress), 1.0, "iln_excel_lookup")
			storeAddress = info.FormattedAddress
			ilnCompany = info.Company
			ilnFilialeHint = info.FilialeHint
		} else {
			warnings = append(warnings, fmt.Sprintf("ILN-Fil %s not found in Excel mapping", ilnFil))
		}
	}

	// 3. Derive a missing iln from the delivery address.
	if !isMomaxBG && deliveryAddress != "" && header.Text(model.FieldILN) == "" {
		if iln := n.lookup.ILNByAddress(deliveryAddress); iln != "" {
			header.Ensure(model.FieldILN).SetDerived(model.StringValue(iln), 1.0, "iln_excel_lookup")
		}
	}

	// 4. A Kundennummer extracted from the mail itself (4 to 8 digits, not a
	// 13-digit ILN) is resolved first; extraction often grabs ILN or phone
	// numbers instead.
	kdnrFromEmail := ""
	if e := header.Get(model.FieldKundennummer); e != nil {
		src := model.Source(strings.ToLower(string(e.Source)))
		if val := e.Text(); val != "" && (src == model.SourceEmail || src == model.SourcePDF || src == model.SourceImage) {
			digits := kdnrDigitsRe.ReplaceAllString(val, "")
			if len(digits) >= 4 && len(digits) <= 8 {
				trimmed := strings.TrimLeft(digits, "0")
				if trimmed == "" {
					trimmed = digits
				}
				kdnrFromEmail = trimmed
			}
		}
	}
	var kdnrMatch *CustomerMatch
	if !isMomaxBG && kdnrFromEmail != "" {
		if match := n.lookup.CustomerByKundennummer(kdnrFromEmail); match != nil {
			kdnrMatch = match
			setCustomerFields(header, match, 1.0, "excel_lookup_by_kundennummer")
			warnings = append(warnings, "Kundennummer from email KDNR verified in Primex; please confirm.")
		}
	}

	// The store is the billing entity, so it wins over the delivery address
	// when searching for the customer. MOMAX BG must only ever use the
	// extracted store_address.
	addressToSearch := storeAddress
	if !isMomaxBG && addressToSearch == "" {
		addressToSearch = deliveryAddress
	}

	isJoop := emailBody != "" && strings.Contains(strings.ToUpper(emailBody), "JOOP")
	storeName := header.Text(model.FieldStoreName)

	if kdnrMatch == nil && isMomaxBG && addressToSearch != "" {
		match, notes := n.lookup.MomaxBGCustomerByAddress(addressToSearch, storeName)
		warnings = append(warnings, notes...)
		if match != nil {
			setCustomerFields(header, match, 1.0, "excel_lookup_momax_bg_address")
			kdnrMatch = match
		} else {
			warnings = append(warnings, "MOMAX BG address match failed in Kunden_Bulgarien.xlsx.")
		}
	}
	if isMomaxBG && kdnrMatch == nil {
		if addressToSearch == "" {
			warnings = append(warnings, "MOMAX BG store_address missing; Kundennummer lookup failed.")
		}
		setCustomerFailed(header)
	}

	if !isMomaxBG && kdnrMatch == nil && addressToSearch != "" {
		var hintParts []string
		for _, p := range []string{sender, emailBody} {
			if p != "" {
				hintParts = append(hintParts, p)
			}
		}
		match, notes := n.lookup.CustomerByAddress(CustomerQuery{
			Address:        addressToSearch,
			KomName:        storeName,
			IsJoop:         isJoop,
			ClientHint:     strings.TrimSpace(strings.Join(hintParts, "\n")),
			ILNCompany:     ilnCompany,
			ILNFilialeHint: ilnFilialeHint,
		})
		warnings = append(warnings, notes...)
		if match != nil {
			// Always overwrite the Kundennummer on a strict address match.
			setCustomerFields(header, match, 1.0, "excel_lookup")
		} else {
			// Address match failed: derive the Kundennummer from an ILN and
			// verify it in Primex.
			ilnForFallback := ilnFil
			if ilnForFallback == "" {
				ilnForFallback = ilnAnl
			}
			if ilnForFallback == "" {
				ilnForFallback = header.Text(model.FieldILN)
			}
			ilnKdnr := ""
			if ilnForFallback != "" {
				ilnKdnr = n.lookup.KundennummerByILN(ilnForFallback)
			}
			if ilnKdnr != "" {
				warnings = append(warnings, "Kundennummer from ILN fallback (address match failed); please verify.")
				header.Ensure(model.FieldKundennummer).SetDerived(model.StringValue(ilnKdnr), 0.8, "iln_fallback")
				if byKdnr := n.lookup.CustomerByKundennummer(ilnKdnr); byKdnr != nil {
					header.Ensure(model.FieldAdressnummer).SetDerived(model.StringValue(byKdnr.Adressnummer), 0.8, "iln_fallback")
					header.Ensure(model.FieldTour).SetDerived(model.StringValue(byKdnr.Tour), 0.8, "iln_fallback")
				} else {
					header.Ensure(model.FieldAdressnummer).SetDerived(model.StringValue(""), 0.0, "excel_lookup_failed")
					header.Ensure(model.FieldTour).SetDerived(model.StringValue(""), 0.0, "excel_lookup_failed")
				}
			} else {
				setCustomerFailed(header)
			}
		}
	}

	// Tour validation against the Lieferlogik delivery schedule.
	if tour := header.Text(model.FieldTour); tour != "" && !n.lookup.IsTourValid(tour) {
		warnings = append(warnings, fmt.Sprintf("Tour number '%s' not found in Lieferlogik; please verify in Primex Kunden Excel.", tour))
	}

	if n.weeks != nil {
		bestelldatum := header.Text(model.FieldBestelldatum)
		tour := header.Text(model.FieldTour)
		if bestelldatum != "" && tour != "" {
			wunschtermin := header.Text(model.FieldWunschtermin)
			if dw := n.weeks.Calculate(bestelldatum, tour, wunschtermin, header.Text(model.FieldStoreName)); dw != "" {
				header.Ensure(model.FieldDeliveryWeek).SetDerived(model.StringValue(dw), 1.0, "delivery_logic")
			}
		}
	}

	return warnings
}

func setCustomerFields(header model.Header, match *CustomerMatch, confidence float64, derivedFrom string) {
	header.Ensure(model.FieldKundennummer).SetDerived(model.StringValue(match.Kundennummer), confidence, derivedFrom)
	header.Ensure(model.FieldAdressnummer).SetDerived(model.StringValue(match.Adressnummer), confidence, derivedFrom)
	header.Ensure(model.FieldTour).SetDerived(model.StringValue(match.Tour), confidence, derivedFrom)
}

func setCustomerFailed(header model.Header) {
	for _, f := range []string{model.FieldKundennummer, model.FieldAdressnummer, model.FieldTour} {
		header.Ensure(f).SetDerived(model.StringValue(""), 0.0, "excel_lookup_failed")
	}
}
