package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Status is the terminal health of an order record.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Header maps canonical field names to field entries.
type Header map[string]*FieldEntry

// Ensure returns the entry for the field, creating an empty derived entry
// when absent so callers never see bare scalars or missing keys.
func (h Header) Ensure(field string) *FieldEntry {
	if e, ok := h[field]; ok && e != nil {
		return e
	}
	e := EmptyEntry()
	h[field] = e
	return e
}

// Get returns the entry or nil without mutating the header.
func (h Header) Get(field string) *FieldEntry { return h[field] }

// Text returns the trimmed string value of a header field, "" when absent.
func (h Header) Text(field string) string { return h[field].Text() }

// Bool returns the boolean value of a header field, false when absent or
// non-boolean.
func (h Header) Bool(field string) bool {
	e := h[field]
	if e == nil {
		return false
	}
	return e.Value.Bool()
}

// SetBool forces a boolean header field to the given value as a derived edit.
func (h Header) SetBool(field string, v bool, derivedFrom string) {
	e := h.Ensure(field)
	e.SetDerived(BoolValue(v), 1.0, derivedFrom)
}

// Item is one order line. Fields holds the four canonical item entries.
type Item struct {
	LineNo int
	Fields map[string]*FieldEntry
}

// NewItem creates an item with all canonical fields present and empty.
func NewItem(lineNo int) *Item {
	it := &Item{LineNo: lineNo, Fields: make(map[string]*FieldEntry, len(ItemFields))}
	for _, f := range ItemFields {
		it.Fields[f] = EmptyEntry()
	}
	return it
}

// Ensure returns the entry for the field, creating an empty one when absent.
func (it *Item) Ensure(field string) *FieldEntry {
	if e, ok := it.Fields[field]; ok && e != nil {
		return e
	}
	e := EmptyEntry()
	it.Fields[field] = e
	return e
}

// Text returns the trimmed string value of an item field, "" when absent.
func (it *Item) Text(field string) string { return it.Fields[field].Text() }

// Quantity returns the numeric menge, defaulting to 1 when unset or
// non-numeric.
func (it *Item) Quantity() float64 {
	e := it.Fields[FieldMenge]
	if e == nil {
		return 1
	}
	if f, ok := e.Value.Float(); ok {
		return f
	}
	return 1
}

// MarshalJSON inlines line_no next to the field entries.
func (it *Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(it.Fields)+1)
	out["line_no"] = it.LineNo
	for k, v := range it.Fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both wrapped entries and bare scalars per field.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: unmarshal item")
	}
	it.Fields = make(map[string]*FieldEntry, len(raw))
	for k, v := range raw {
		if k == "line_no" {
			if err := json.Unmarshal(v, &it.LineNo); err != nil {
				return eris.Wrap(err, "model: unmarshal item line_no")
			}
			continue
		}
		var e FieldEntry
		if err := json.Unmarshal(v, &e); err == nil && e.Source != "" {
			it.Fields[k] = &e
			continue
		}
		var val Value
		if err := json.Unmarshal(v, &val); err != nil {
			return eris.Wrapf(err, "model: unmarshal item field %s", k)
		}
		it.Fields[k] = NewEntry(val, SourceDerived)
	}
	return nil
}

// Program is the catalog match attached to a whole order. Its furncloud_id
// acts as the order-wide fallback for item-level furncloud_id values.
type Program struct {
	ProgramName string `json:"program_name,omitempty"`
	FurncloudID string `json:"furncloud_id,omitempty"`
}

// Article is one resolved catalog line attached alongside the extracted
// items; the exporter prefers these over raw items when present.
type Article struct {
	ArticleID   string  `json:"article_id"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity"`
}

// Order is the canonical record produced by one processed message.
type Order struct {
	MessageID  string     `json:"message_id"`
	ReceivedAt time.Time  `json:"received_at"`
	Branch     string     `json:"branch,omitempty"`
	Header     Header     `json:"header"`
	Items      []*Item    `json:"items"`
	Program    *Program   `json:"program,omitempty"`
	Articles   []*Article `json:"articles,omitempty"`
	Status     Status     `json:"status"`
	Warnings   []string   `json:"warnings"`
	Errors     []string   `json:"errors"`
}

// NewOrder creates an order with an initialized header and empty item list.
func NewOrder(messageID string, receivedAt time.Time) *Order {
	return &Order{
		MessageID:  messageID,
		ReceivedAt: receivedAt,
		Header:     make(Header, len(HeaderFields)),
		Items:      []*Item{},
		Status:     StatusPartial,
		Warnings:   []string{},
		Errors:     []string{},
	}
}

// AppendUniqueWarning appends w unless an identical warning already exists.
// Order of first appearance is preserved.
func (o *Order) AppendUniqueWarning(w string) {
	w = strings.TrimSpace(w)
	if w == "" {
		return
	}
	for _, existing := range o.Warnings {
		if existing == w {
			return
		}
	}
	o.Warnings = append(o.Warnings, w)
}

// RemoveWarningsWhere drops every warning matching the predicate, keeping
// relative order of the rest.
func (o *Order) RemoveWarningsWhere(match func(string) bool) {
	kept := o.Warnings[:0]
	for _, w := range o.Warnings {
		if !match(w) {
			kept = append(kept, w)
		}
	}
	o.Warnings = kept
}

// RenumberItems reassigns line numbers 1..n in slice order.
func (o *Order) RenumberItems() {
	for i, it := range o.Items {
		it.LineNo = i + 1
	}
}
