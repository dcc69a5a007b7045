package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Source identifies where an extracted value came from.
type Source string

const (
	SourcePDF     Source = "pdf"
	SourceEmail   Source = "email"
	SourceImage   Source = "image"
	SourceDerived Source = "derived"
)

// AllowedSources is the closed set of valid field-entry sources.
var AllowedSources = map[Source]bool{
	SourcePDF:     true,
	SourceEmail:   true,
	SourceImage:   true,
	SourceDerived: true,
}

// Valid reports whether s is one of the allowed sources.
func (s Source) Valid() bool { return AllowedSources[s] }

// ValueKind discriminates the scalar payload of a Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
)

// Value is the tagged scalar union (string | number | bool) carried by every
// field entry. The zero Value is the empty string.
type Value struct {
	kind  ValueKind
	str   string
	num   float64
	isInt bool
	b     bool
}

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue wraps an integer quantity.
func IntValue(n int) Value { return Value{kind: KindNumber, num: float64(n), isInt: true} }

// FloatValue wraps a float quantity. Integral floats collapse to ints so that
// JSON round-trips stay stable.
func FloatValue(f float64) Value {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return Value{kind: KindNumber, num: f, isInt: true}
	}
	return Value{kind: KindNumber, num: f}
}

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the discriminator.
func (v Value) Kind() ValueKind { return v.kind }

// IsEmpty reports whether the value represents missing data: an empty or
// whitespace-only string. Numbers and booleans are never empty.
func (v Value) IsEmpty() bool {
	return v.kind == KindString && strings.TrimSpace(v.str) == ""
}

// String renders the value the way the export layer and warnings print it.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		if v.isInt {
			return strconv.FormatInt(int64(v.num), 10)
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return v.str
	}
}

// Bool returns the boolean payload, or false for non-bool values.
func (v Value) Bool() bool { return v.kind == KindBool && v.b }

// Float returns the numeric payload and whether the value is a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// IsInt reports whether the value is an integral number.
func (v Value) IsInt() bool { return v.kind == KindNumber && v.isInt }

// Equal compares two values by kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	default:
		return v.str == o.str
	}
}

// MarshalJSON renders the underlying scalar, not a wrapper object.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if v.isInt {
			return json.Marshal(int64(v.num))
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON accepts any JSON scalar; null becomes the empty string.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: unmarshal value")
	}
	*v = ValueOf(raw)
	return nil
}

// ValueOf converts a decoded JSON scalar into a Value. Unsupported shapes
// degrade to their string rendering rather than failing.
func ValueOf(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return StringValue("")
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case float64:
		return FloatValue(t)
	case int:
		return IntValue(t)
	case int64:
		return IntValue(int(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return FloatValue(f)
		}
		return StringValue(t.String())
	default:
		b, err := json.Marshal(raw)
		if err != nil {
			return StringValue("")
		}
		return StringValue(string(b))
	}
}

// FieldEntry wraps every extracted datum with provenance and confidence.
type FieldEntry struct {
	Value       Value   `json:"value"`
	Source      Source  `json:"source"`
	Confidence  float64 `json:"confidence"`
	DerivedFrom string  `json:"derived_from,omitempty"`
}

// NewEntry creates a field entry with the given source. Empty values get
// zero confidence.
func NewEntry(v Value, source Source) *FieldEntry {
	conf := 0.9
	if v.IsEmpty() {
		conf = 0.0
	}
	return &FieldEntry{Value: v, Source: source, Confidence: conf}
}

// EmptyEntry returns a derived entry holding the empty string.
func EmptyEntry() *FieldEntry {
	return &FieldEntry{Value: StringValue(""), Source: SourceDerived, Confidence: 0.0}
}

// IsMissing reports whether the entry is absent or holds an empty value.
func (e *FieldEntry) IsMissing() bool {
	return e == nil || e.Value.IsEmpty()
}

// Text returns the trimmed string rendering of the entry value, or "" for nil.
func (e *FieldEntry) Text() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Value.String())
}

// SetDerived mutates value, source, confidence and provenance tag as one
// atomic edit, as every corrector is required to do.
func (e *FieldEntry) SetDerived(v Value, confidence float64, derivedFrom string) {
	e.Value = v
	e.Source = SourceDerived
	e.Confidence = confidence
	e.DerivedFrom = derivedFrom
}
