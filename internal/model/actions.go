package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ActionType identifies the mutation an action performs on a transaction.
type ActionType string

// Action types.
const (
	ActionSetCategory  ActionType = "set_category"
	ActionSetVendor    ActionType = "set_vendor"
	ActionSetNotes     ActionType = "set_notes"
	ActionAddTags      ActionType = "add_tags"
	ActionSetAccount   ActionType = "set_account"
	ActionSetType      ActionType = "set_type"
	ActionSetReference ActionType = "set_reference"
)

// Target returns the logical change-set field an action type writes, or
// an empty string for an unknown type.
func (t ActionType) Target() string {
	switch t {
	case ActionSetCategory:
		return "category"
	case ActionSetVendor:
		return "vendor"
	case ActionSetNotes:
		return "notes"
	case ActionAddTags:
		return "tags"
	case ActionSetAccount:
		return "account"
	case ActionSetType:
		return "type"
	case ActionSetReference:
		return "reference"
	}
	return ""
}

// Behavior is the overwrite policy of one action. Which behaviors are
// valid depends on the action type: simple setters take always/if_empty,
// set_notes takes replace/append, add_tags takes merge/replace.
type Behavior string

// Behaviors.
const (
	BehaviorAlways  Behavior = "always"
	BehaviorIfEmpty Behavior = "if_empty"
	BehaviorReplace Behavior = "replace"
	BehaviorAppend  Behavior = "append"
	BehaviorMerge   Behavior = "merge"
)

// ValidFor reports whether the behavior applies to the given action type.
func (b Behavior) ValidFor(t ActionType) bool {
	switch t {
	case ActionSetCategory, ActionSetVendor, ActionSetAccount, ActionSetType, ActionSetReference:
		return b == BehaviorAlways || b == BehaviorIfEmpty
	case ActionSetNotes:
		return b == BehaviorReplace || b == BehaviorAppend
	case ActionAddTags:
		return b == BehaviorMerge || b == BehaviorReplace
	}
	return false
}

// defaultBehavior is used when a stored action omits its behavior.
func defaultBehavior(t ActionType) Behavior {
	switch t {
	case ActionSetNotes:
		return BehaviorReplace
	case ActionAddTags:
		return BehaviorMerge
	default:
		return BehaviorAlways
	}
}

// DefaultNotesSeparator joins existing and appended notes when an
// append action does not name its own separator.
const DefaultNotesSeparator = " | "

// MaxActionsPerRule caps the action list of a single rule.
const MaxActionsPerRule = 20

// Action is one typed mutation a matched rule applies.
type Action struct {
	Value     any        `json:"value"`
	Type      ActionType `json:"type"`
	Behavior  Behavior   `json:"behavior,omitempty"`
	Separator string     `json:"separator,omitempty"`
	Priority  int        `json:"priority,omitempty"`
}

// IDValue coerces the action value to an integer identifier. JSON
// numbers arrive as float64; anything else fails.
func (a Action) IDValue() (int64, bool) {
	switch v := a.Value.(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	}
	return 0, false
}

// StringValue coerces the action value to a string.
func (a Action) StringValue() (string, bool) {
	s, ok := a.Value.(string)
	return s, ok
}

// IDListValue coerces the action value to a sorted, de-duplicated list
// of integer identifiers.
func (a Action) IDListValue() ([]int64, bool) {
	raw, ok := a.Value.([]any)
	if !ok {
		if typed, isTyped := a.Value.([]int64); isTyped {
			return normalizeIDList(typed), true
		}
		return nil, false
	}

	ids := make([]int64, 0, len(raw))
	for _, item := range raw {
		id, isNum := Action{Value: item}.IDValue()
		if !isNum {
			return nil, false
		}
		ids = append(ids, id)
	}
	return normalizeIDList(ids), true
}

func normalizeIDList(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ActionSet is the decoded, canonical form of a rule's action list.
type ActionSet struct {
	Actions        []Action `json:"actions"`
	Version        int      `json:"version"`
	StopProcessing bool     `json:"stopProcessing"`
}

// ActionsFormatVersion is the current stored actions format.
const ActionsFormatVersion = 2

// DecodeActions parses a stored actions document. Version 1 documents
// are a flat field→value map; they convert to the equivalent v2 action
// list with behavior "always". StopProcessing defaults to true when the
// document does not carry the flag.
func DecodeActions(raw []byte, version int) (ActionSet, error) {
	if len(raw) == 0 {
		return ActionSet{}, fmt.Errorf("empty actions document")
	}

	switch version {
	case 1:
		return decodeLegacyActions(raw)
	case 2:
		var doc struct {
			StopProcessing *bool    `json:"stopProcessing"`
			Actions        []Action `json:"actions"`
			Version        int      `json:"version"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return ActionSet{}, fmt.Errorf("failed to parse actions document: %w", err)
		}
		set := ActionSet{
			Version:        ActionsFormatVersion,
			StopProcessing: doc.StopProcessing == nil || *doc.StopProcessing,
			Actions:        doc.Actions,
		}
		for i := range set.Actions {
			if set.Actions[i].Behavior == "" {
				set.Actions[i].Behavior = defaultBehavior(set.Actions[i].Type)
			}
		}
		return set, nil
	}
	return ActionSet{}, fmt.Errorf("unsupported actions format version %d", version)
}

// decodeLegacyActions converts the v1 flat map into the v2 list shape.
// Field order is fixed so the conversion is deterministic.
func decodeLegacyActions(raw []byte) (ActionSet, error) {
	var flat struct {
		CategoryID *int64  `json:"categoryId"`
		AccountID  *int64  `json:"accountId"`
		Vendor     *string `json:"vendor"`
		Notes      *string `json:"notes"`
		Type       *string `json:"type"`
		Reference  *string `json:"reference"`
		Tags       []int64 `json:"tags"`
	}
	if err := json.Unmarshal(raw, &flat); err != nil {
		return ActionSet{}, fmt.Errorf("failed to parse legacy actions document: %w", err)
	}

	var actions []Action
	if flat.CategoryID != nil {
		actions = append(actions, Action{Type: ActionSetCategory, Value: *flat.CategoryID, Behavior: BehaviorAlways})
	}
	if flat.Vendor != nil {
		actions = append(actions, Action{Type: ActionSetVendor, Value: *flat.Vendor, Behavior: BehaviorAlways})
	}
	if flat.Notes != nil {
		actions = append(actions, Action{Type: ActionSetNotes, Value: *flat.Notes, Behavior: BehaviorReplace})
	}
	if flat.AccountID != nil {
		actions = append(actions, Action{Type: ActionSetAccount, Value: *flat.AccountID, Behavior: BehaviorAlways})
	}
	if flat.Type != nil {
		actions = append(actions, Action{Type: ActionSetType, Value: *flat.Type, Behavior: BehaviorAlways})
	}
	if flat.Reference != nil {
		actions = append(actions, Action{Type: ActionSetReference, Value: *flat.Reference, Behavior: BehaviorAlways})
	}
	if len(flat.Tags) > 0 {
		actions = append(actions, Action{Type: ActionAddTags, Value: flat.Tags, Behavior: BehaviorMerge})
	}

	return ActionSet{
		Version:        ActionsFormatVersion,
		StopProcessing: true,
		Actions:        actions,
	}, nil
}

// EncodeActions serializes an action set back to its stored v2 form.
func EncodeActions(set ActionSet) ([]byte, error) {
	doc := struct {
		Actions        []Action `json:"actions"`
		Version        int      `json:"version"`
		StopProcessing bool     `json:"stopProcessing"`
	}{Actions: set.Actions, Version: ActionsFormatVersion, StopProcessing: set.StopProcessing}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode actions: %w", err)
	}
	return data, nil
}
