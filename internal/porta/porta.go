// Package porta implements the PDF-text correction passes for Porta purchase
// orders. Porta confirmations describe set articles as a parent row followed
// by a "bestehend aus je:" component block; the LLM frequently collapses
// repeated blocks into one item list, so the passes here re-read the digital
// PDF text, rebuild the expected component occurrences and reconcile the
// extracted items against them.
package porta

import "regexp"

// Provenance tags written into derived_from by the correction passes.
const (
	DerivedReconciliation      = "porta_component_occurrence_reconciliation"
	DerivedPDFQuantity         = "porta_pdf_quantity"
	DerivedOJAccessoryBackfill = "porta_oj_accessory_backfill"
	DerivedPDFStoreName        = "porta_pdf_verkaufshaus_store_name"
	DerivedPDFKomName          = "porta_pdf_kom_name"
	DerivedStoreNameFallback   = "porta_store_name_fallback"
	DerivedKomNrSuffixTrim     = "porta_kom_nr_suffix_trim"
)

var (
	bestehendAusJeRe  = regexp.MustCompile(`(?i)bestehend\s+aus\s+je\s*:`)
	parentArtikelNrRe = regexp.MustCompile(`\b\d{6,8}\s*/\s*\d{2}\b`)
	componentPairRe   = regexp.MustCompile(`\b([A-Z0-9]{3,14})\s+(\d{4,6}[A-Z]?)\b`)
	ojAccessoryPairRe = regexp.MustCompile(`\b([O0]J\d{2})\s*(?:-| )\s*(\d{4,6}[A-Z]?)\b`)
	qtySTKRe          = regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\s*STK\b`)
	qtyOnlyLineRe     = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)\s*$`)
	stkOnlyLineRe     = regexp.MustCompile(`(?i)^\s*STK\.?\s*$`)
	parentRowRe       = regexp.MustCompile(`\b\d+(?:[.,]\d+)?\s*STK\b.*\b\d{6,8}\s*/\s*\d{2}\b`)

	blockEndRe = regexp.MustCompile(
		`\b(?:ANLIEFERUNG|RECHNUNGSADRESSE|VERKAUFSHAUS|SERVICE-CENTER|` +
			`BESUCHEN\s+SIE\s+UNS|FRAGEN\s+AN|MENGE|ARTIKEL-NR|` +
			`AMTSGERICHT|GESCH[AÄ]FTSF[ÜU]HRER|GESCHAEFTSFUEHRER|` +
			`UST-ID|UST\s*ID|ST\.-?NR|IBAN|BIC|COMMERZBANK|COBADEFF|` +
			`HRA\s+\d{3,8}|HRB\s+\d{3,8}|H\s*R\s*[AB8]\s+\d{3,8})\b`)
	legalLineRe = regexp.MustCompile(
		`(?i)\b(?:AMTSGERICHT|GESCH[AÄ]FTSF[ÜU]HRER|GESCHAEFTSFUEHRER|` +
			`UST-ID|USt-IdNr|ST\.-?NR|IBAN|BIC|COMMERZBANK|COBADEFF|` +
			`HRA\s+\d{3,8}|HRB\s+\d{3,8}|H\s*R\s*[AB8]\s+\d{3,8})\b`)

	komNameLabelRe  = regexp.MustCompile(`(?i)\b(?:kommissionsname|kommissions-?name|commissionname)\b`)
	komLineRe       = regexp.MustCompile(`(?i)\b(?:kommission|komm)\b`)
	komNumberRe     = regexp.MustCompile(`\d{4,}(?:/\d+)?`)
	komNameRejectRe = regexp.MustCompile(
		`(?i)\b(?:bestelldatum|datum|kundennr|kunden-?nr|debitor|konto|iln|gln|` +
			`liefertermin|wunschtermin|lieferadresse|lieferanschrift|` +
			`verk[aä]ufer|verkaeufer|verkausfhaus|service-center|` +
			`anlieferung|rechnungsadresse)\b`)

	storeNameLegalTokenRe = regexp.MustCompile(`(?i)\b(?:gmbh|mbh|co\.?\s*&?\s*kg|kg|ag|handels(?:gesellschaft)?)\b`)
	storeNameRejectRe     = regexp.MustCompile(
		`(?i)\b(?:anlieferung|rechnungsadresse|lieferanschrift|service-?center|` +
			`telefon|fax|mail|e-?mail|www\.|http|besuchen\s+sie\s+uns|` +
			`amtsgericht|geschaeftsfuehrer|geschäftsführer|ust-?id|iban|bic)\b`)
	storeNamePrefixRe = regexp.MustCompile(`(?i)^\s*(?:verkaufshaus|filiale)\s*[:\-]?\s*`)
	verkaufshausRe    = regexp.MustCompile(`(?i)\bverkaufshaus\b`)
	plzTokenRe        = regexp.MustCompile(`\b\d{5}\b`)
	// RE2 word boundaries are ASCII-only, so the trailing boundary after
	// "straße" has to be spelled out as a consumed non-letter class.
	streetTokenRe  = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:str\.?|strasse|straße|allee|weg|platz|gasse)(?:[^\p{L}\p{N}_]|$)`)
	labelSplitRe   = regexp.MustCompile(`[:\-]`)
	komNrSuffixRe  = regexp.MustCompile(`/\d+\b`)
	portaWordRe    = regexp.MustCompile(`(?i)\bporta\b`)
	nonAlnumRe     = regexp.MustCompile(`[^A-Z0-9]`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	pageNumberedRe = regexp.MustCompile(`-(\d+)$`)
)
