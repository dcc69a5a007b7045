package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderEnsure(t *testing.T) {
	t.Parallel()

	h := make(Header)
	e := h.Ensure(FieldKundennummer)
	require.NotNil(t, e)
	assert.True(t, e.IsMissing())
	assert.Equal(t, 0.0, e.Confidence)

	// Same entry on repeat call.
	assert.Same(t, e, h.Ensure(FieldKundennummer))
}

func TestHeaderBoolHelpers(t *testing.T) {
	t.Parallel()

	h := make(Header)
	assert.False(t, h.Bool(FieldReplyNeeded))

	h.SetBool(FieldReplyNeeded, true, "missing_critical_header_fields")
	assert.True(t, h.Bool(FieldReplyNeeded))
	assert.Equal(t, SourceDerived, h[FieldReplyNeeded].Source)
	assert.Equal(t, "missing_critical_header_fields", h[FieldReplyNeeded].DerivedFrom)
}

func TestNewItemHasAllFields(t *testing.T) {
	t.Parallel()

	it := NewItem(3)
	assert.Equal(t, 3, it.LineNo)
	for _, f := range ItemFields {
		require.Contains(t, it.Fields, f)
		assert.True(t, it.Fields[f].IsMissing())
	}
}

func TestItemQuantityDefaults(t *testing.T) {
	t.Parallel()

	it := NewItem(1)
	assert.Equal(t, 1.0, it.Quantity())

	it.Ensure(FieldMenge).SetDerived(FloatValue(2.5), 0.9, "")
	assert.Equal(t, 2.5, it.Quantity())
}

func TestItemJSONRoundTrip(t *testing.T) {
	t.Parallel()

	it := NewItem(2)
	it.Ensure(FieldArtikelnummer).Value = StringValue("74430")
	it.Ensure(FieldMenge).Value = IntValue(2)

	b, err := json.Marshal(it)
	require.NoError(t, err)

	var back Item
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 2, back.LineNo)
	assert.Equal(t, "74430", back.Text(FieldArtikelnummer))
	assert.Equal(t, 2.0, back.Quantity())
}

func TestItemUnmarshalBareScalars(t *testing.T) {
	t.Parallel()

	var it Item
	require.NoError(t, json.Unmarshal([]byte(`{"line_no":1,"artikelnummer":"76403","menge":3}`), &it))
	assert.Equal(t, "76403", it.Text(FieldArtikelnummer))
	assert.Equal(t, 3.0, it.Quantity())
	assert.Equal(t, SourceDerived, it.Fields[FieldArtikelnummer].Source)
}

func TestAppendUniqueWarning(t *testing.T) {
	t.Parallel()

	o := NewOrder("msg-1", time.Now())
	o.AppendUniqueWarning("Missing header fields: kundennummer")
	o.AppendUniqueWarning("Missing header fields: kundennummer")
	o.AppendUniqueWarning("  ")
	o.AppendUniqueWarning("No items extracted.")

	assert.Equal(t, []string{
		"Missing header fields: kundennummer",
		"No items extracted.",
	}, o.Warnings)
}

func TestRemoveWarningsWhere(t *testing.T) {
	t.Parallel()

	o := NewOrder("msg-1", time.Now())
	o.Warnings = []string{
		"Missing header fields: tour",
		"Routing: selected=porta confidence=0.90 forced=false fallback=false",
		"Missing item fields: menge (line 1)",
	}
	o.RemoveWarningsWhere(func(w string) bool {
		return strings.HasPrefix(w, "Missing ")
	})
	assert.Equal(t, []string{
		"Routing: selected=porta confidence=0.90 forced=false fallback=false",
	}, o.Warnings)
}

func TestRenumberItems(t *testing.T) {
	t.Parallel()

	o := NewOrder("msg-1", time.Now())
	o.Items = []*Item{NewItem(7), NewItem(9), NewItem(1)}
	o.RenumberItems()
	for i, it := range o.Items {
		assert.Equal(t, i+1, it.LineNo)
	}
}
