package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeActions_V2(t *testing.T) {
	raw := []byte(`{
		"version": 2,
		"stopProcessing": false,
		"actions": [
			{"type": "set_category", "value": 5, "behavior": "if_empty", "priority": 10},
			{"type": "set_notes", "value": "imported", "behavior": "append", "separator": "; "},
			{"type": "add_tags", "value": [1, 2, 3]}
		]
	}`)

	set, err := DecodeActions(raw, 2)
	require.NoError(t, err)

	assert.False(t, set.StopProcessing)
	require.Len(t, set.Actions, 3)

	assert.Equal(t, ActionSetCategory, set.Actions[0].Type)
	assert.Equal(t, BehaviorIfEmpty, set.Actions[0].Behavior)
	assert.Equal(t, 10, set.Actions[0].Priority)

	id, ok := set.Actions[0].IDValue()
	require.True(t, ok)
	assert.Equal(t, int64(5), id)

	assert.Equal(t, "; ", set.Actions[1].Separator)

	// Behavior defaults per type when absent.
	assert.Equal(t, BehaviorMerge, set.Actions[2].Behavior)
}

func TestDecodeActions_StopProcessingDefaultsTrue(t *testing.T) {
	raw := []byte(`{"version": 2, "actions": [{"type": "set_vendor", "value": "Amazon"}]}`)

	set, err := DecodeActions(raw, 2)
	require.NoError(t, err)
	assert.True(t, set.StopProcessing)
	assert.Equal(t, BehaviorAlways, set.Actions[0].Behavior)
}

func TestDecodeActions_LegacyV1(t *testing.T) {
	raw := []byte(`{"categoryId": 5, "vendor": "Amazon", "notes": "bulk import", "tags": [3, 1]}`)

	set, err := DecodeActions(raw, 1)
	require.NoError(t, err)

	assert.True(t, set.StopProcessing)
	require.Len(t, set.Actions, 4)

	assert.Equal(t, ActionSetCategory, set.Actions[0].Type)
	assert.Equal(t, BehaviorAlways, set.Actions[0].Behavior)
	id, ok := set.Actions[0].IDValue()
	require.True(t, ok)
	assert.Equal(t, int64(5), id)

	assert.Equal(t, ActionSetVendor, set.Actions[1].Type)
	vendor, ok := set.Actions[1].StringValue()
	require.True(t, ok)
	assert.Equal(t, "Amazon", vendor)

	assert.Equal(t, ActionSetNotes, set.Actions[2].Type)
	assert.Equal(t, BehaviorReplace, set.Actions[2].Behavior)

	assert.Equal(t, ActionAddTags, set.Actions[3].Type)
	assert.Equal(t, BehaviorMerge, set.Actions[3].Behavior)
	tags, ok := set.Actions[3].IDListValue()
	require.True(t, ok)
	assert.Equal(t, []int64{1, 3}, tags)
}

func TestDecodeActions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		version int
	}{
		{name: "empty document", raw: "", version: 2},
		{name: "malformed v2", raw: `{`, version: 2},
		{name: "malformed v1", raw: `[1,2]`, version: 1},
		{name: "unsupported version", raw: `{}`, version: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeActions([]byte(tt.raw), tt.version)
			assert.Error(t, err)
		})
	}
}

func TestEncodeActions_RoundTrip(t *testing.T) {
	set := ActionSet{
		Version:        2,
		StopProcessing: false,
		Actions: []Action{
			{Type: ActionSetVendor, Value: "Amazon", Behavior: BehaviorAlways},
			{Type: ActionSetNotes, Value: "note", Behavior: BehaviorAppend, Separator: " / "},
		},
	}

	raw, err := EncodeActions(set)
	require.NoError(t, err)

	decoded, err := DecodeActions(raw, 2)
	require.NoError(t, err)
	assert.Equal(t, set.StopProcessing, decoded.StopProcessing)
	assert.Equal(t, set.Actions, decoded.Actions)
}

func TestActionValueCoercions(t *testing.T) {
	t.Run("id from float64", func(t *testing.T) {
		id, ok := Action{Value: 7.0}.IDValue()
		assert.True(t, ok)
		assert.Equal(t, int64(7), id)
	})

	t.Run("id rejects fractional numbers", func(t *testing.T) {
		_, ok := Action{Value: 7.5}.IDValue()
		assert.False(t, ok)
	})

	t.Run("id rejects strings", func(t *testing.T) {
		_, ok := Action{Value: "7"}.IDValue()
		assert.False(t, ok)
	})

	t.Run("string value", func(t *testing.T) {
		s, ok := Action{Value: "hello"}.StringValue()
		assert.True(t, ok)
		assert.Equal(t, "hello", s)
	})

	t.Run("string rejects numbers", func(t *testing.T) {
		_, ok := Action{Value: 5.0}.StringValue()
		assert.False(t, ok)
	})

	t.Run("id list sorts and de-duplicates", func(t *testing.T) {
		ids, ok := Action{Value: []any{3.0, 1.0, 3.0, 2.0}}.IDListValue()
		assert.True(t, ok)
		assert.Equal(t, []int64{1, 2, 3}, ids)
	})

	t.Run("id list rejects mixed types", func(t *testing.T) {
		_, ok := Action{Value: []any{1.0, "two"}}.IDListValue()
		assert.False(t, ok)
	})
}

func TestActionTypeTarget(t *testing.T) {
	assert.Equal(t, "category", ActionSetCategory.Target())
	assert.Equal(t, "vendor", ActionSetVendor.Target())
	assert.Equal(t, "notes", ActionSetNotes.Target())
	assert.Equal(t, "tags", ActionAddTags.Target())
	assert.Equal(t, "account", ActionSetAccount.Target())
	assert.Equal(t, "type", ActionSetType.Target())
	assert.Equal(t, "reference", ActionSetReference.Target())
	assert.Equal(t, "", ActionType("set_balance").Target())
}

func TestBehaviorValidFor(t *testing.T) {
	assert.True(t, BehaviorAlways.ValidFor(ActionSetVendor))
	assert.True(t, BehaviorIfEmpty.ValidFor(ActionSetCategory))
	assert.False(t, BehaviorAppend.ValidFor(ActionSetVendor))

	assert.True(t, BehaviorReplace.ValidFor(ActionSetNotes))
	assert.True(t, BehaviorAppend.ValidFor(ActionSetNotes))
	assert.False(t, BehaviorIfEmpty.ValidFor(ActionSetNotes))

	assert.True(t, BehaviorMerge.ValidFor(ActionAddTags))
	assert.True(t, BehaviorReplace.ValidFor(ActionAddTags))
	assert.False(t, BehaviorAlways.ValidFor(ActionAddTags))
}
