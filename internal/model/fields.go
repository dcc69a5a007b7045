package model

// Canonical header field names. These are fixed German business terms and
// form the wire format consumed by the XML exporter; never translate them.
const (
	FieldTicketNumber      = "ticket_number"
	FieldKundennummer      = "kundennummer"
	FieldAdressnummer      = "adressnummer"
	FieldKomNr             = "kom_nr"
	FieldKomName           = "kom_name"
	FieldLiefertermin      = "liefertermin"
	FieldWunschtermin      = "wunschtermin"
	FieldBestelldatum      = "bestelldatum"
	FieldLieferanschrift   = "lieferanschrift"
	FieldTour              = "tour"
	FieldStoreName         = "store_name"
	FieldStoreAddress      = "store_address"
	FieldSeller            = "seller"
	FieldDeliveryWeek      = "delivery_week"
	FieldILN               = "iln"
	FieldILNAnl            = "iln_anl"
	FieldILNFil            = "iln_fil"
	FieldHumanReviewNeeded = "human_review_needed"
	FieldReplyNeeded       = "reply_needed"
	FieldPostCase          = "post_case"
)

// Canonical item field names.
const (
	FieldArtikelnummer = "artikelnummer"
	FieldModellnummer  = "modellnummer"
	FieldMenge         = "menge"
	FieldFurncloudID   = "furncloud_id"
)

// HeaderFields lists every canonical header field in output order.
var HeaderFields = []string{
	FieldTicketNumber,
	FieldKundennummer,
	FieldAdressnummer,
	FieldKomNr,
	FieldKomName,
	FieldLiefertermin,
	FieldWunschtermin,
	FieldBestelldatum,
	FieldLieferanschrift,
	FieldTour,
	FieldStoreName,
	FieldStoreAddress,
	FieldSeller,
	FieldDeliveryWeek,
	FieldILN,
	FieldILNAnl,
	FieldILNFil,
	FieldHumanReviewNeeded,
	FieldReplyNeeded,
	FieldPostCase,
}

// ItemFields lists every canonical item field in output order.
var ItemFields = []string{
	FieldArtikelnummer,
	FieldModellnummer,
	FieldMenge,
	FieldFurncloudID,
}

// BoolHeaderFields are coerced to real booleans during normalization and keep
// their confidence even when "empty".
var BoolHeaderFields = map[string]bool{
	FieldHumanReviewNeeded: true,
	FieldReplyNeeded:       true,
	FieldPostCase:          true,
}

// CriticalHeaderFields force reply_needed when missing.
var CriticalHeaderFields = []string{FieldKomNr, FieldKundennummer}

// CriticalItemFields force reply_needed when missing on any item line.
var CriticalItemFields = []string{FieldArtikelnummer, FieldModellnummer}
