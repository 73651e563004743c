// Package model defines the core data structures for the ruleflow engine.
package model

import (
	"encoding/json"
	"fmt"
)

// FieldName identifies the transaction attribute a condition tests.
type FieldName string

// Fields a condition may reference.
const (
	FieldDescription FieldName = "description"
	FieldVendor      FieldName = "vendor"
	FieldAmount      FieldName = "amount"
	FieldReference   FieldName = "reference"
	FieldNotes       FieldName = "notes"
	FieldDate        FieldName = "date"
)

// FieldClass groups fields by the comparison semantics they support.
type FieldClass int

// Field classes.
const (
	FieldClassString FieldClass = iota
	FieldClassNumeric
	FieldClassDate
	FieldClassUnknown
)

// Class returns the comparison class for a field.
func (f FieldName) Class() FieldClass {
	switch f {
	case FieldDescription, FieldVendor, FieldReference, FieldNotes:
		return FieldClassString
	case FieldAmount:
		return FieldClassNumeric
	case FieldDate:
		return FieldClassDate
	}
	return FieldClassUnknown
}

// MatchType is the comparison a condition performs against its pattern.
type MatchType string

// Match types. String fields accept the first five; amount accepts
// equals/greater_than/less_than/between; date accepts
// equals/before/after/between.
const (
	MatchContains    MatchType = "contains"
	MatchStartsWith  MatchType = "starts_with"
	MatchEndsWith    MatchType = "ends_with"
	MatchEquals      MatchType = "equals"
	MatchRegex       MatchType = "regex"
	MatchGreaterThan MatchType = "greater_than"
	MatchLessThan    MatchType = "less_than"
	MatchBetween     MatchType = "between"
	MatchBefore      MatchType = "before"
	MatchAfter       MatchType = "after"
)

// ValidFor reports whether the match type applies to the given field class.
func (m MatchType) ValidFor(class FieldClass) bool {
	switch class {
	case FieldClassString:
		switch m {
		case MatchContains, MatchStartsWith, MatchEndsWith, MatchEquals, MatchRegex:
			return true
		}
	case FieldClassNumeric:
		switch m {
		case MatchEquals, MatchGreaterThan, MatchLessThan, MatchBetween:
			return true
		}
	case FieldClassDate:
		switch m {
		case MatchEquals, MatchBefore, MatchAfter, MatchBetween:
			return true
		}
	}
	return false
}

// GroupOperator combines the results of a group's child nodes.
type GroupOperator string

// Group operators.
const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// Node is one node of a criteria tree: either a Condition leaf or a
// Group combinator. The union is sealed; decoding from the stored JSON
// shape happens once in DecodeCriteria so the evaluator never has to
// probe for an "operator" key at runtime.
type Node interface {
	isCriteriaNode()
}

// Condition tests one transaction field against one pattern.
type Condition struct {
	Field   FieldName `json:"field"`
	Match   MatchType `json:"matchType"`
	Pattern string    `json:"pattern"`
	Negate  bool      `json:"negate,omitempty"`
}

func (Condition) isCriteriaNode() {}

// Group combines child nodes with AND or OR.
type Group struct {
	Operator   GroupOperator `json:"operator"`
	Conditions []Node        `json:"conditions"`
}

func (Group) isCriteriaNode() {}

// CriteriaTree is the decoded, canonical form of a rule's criteria.
// Version records the stored format the tree was decoded from.
type CriteriaTree struct {
	Root    Node `json:"root"`
	Version int  `json:"version"`
}

// CriteriaFormatVersion is the current stored criteria format.
const CriteriaFormatVersion = 2

// MaxCriteriaDepth bounds group nesting during decode. Trees this deep
// are rejected as malformed rather than risking unbounded recursion.
const MaxCriteriaDepth = 50

// DecodeCriteria parses a stored criteria document into its canonical
// tree form. Version 1 documents are a bare condition object with no
// root wrapper; version 2 documents carry {"version":2,"root":...}.
// Both normalize to the same CriteriaTree.
func DecodeCriteria(raw []byte, version int) (CriteriaTree, error) {
	if len(raw) == 0 {
		return CriteriaTree{}, fmt.Errorf("empty criteria document")
	}

	var rootRaw json.RawMessage
	switch version {
	case 1:
		rootRaw = raw
	case 2:
		var envelope struct {
			Root json.RawMessage `json:"root"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return CriteriaTree{}, fmt.Errorf("failed to parse criteria document: %w", err)
		}
		if len(envelope.Root) == 0 {
			return CriteriaTree{}, fmt.Errorf("criteria document has no root node")
		}
		rootRaw = envelope.Root
	default:
		return CriteriaTree{}, fmt.Errorf("unsupported criteria format version %d", version)
	}

	root, err := decodeNode(rootRaw, 0)
	if err != nil {
		return CriteriaTree{}, err
	}

	return CriteriaTree{Version: version, Root: root}, nil
}

// decodeNode parses one node, distinguishing groups from conditions by
// the presence of an operator key in the stored shape.
func decodeNode(raw json.RawMessage, depth int) (Node, error) {
	if depth > MaxCriteriaDepth {
		return nil, fmt.Errorf("criteria nesting exceeds %d levels", MaxCriteriaDepth)
	}

	var probe struct {
		Operator   GroupOperator     `json:"operator"`
		Field      FieldName         `json:"field"`
		Match      MatchType         `json:"matchType"`
		Pattern    string            `json:"pattern"`
		Conditions []json.RawMessage `json:"conditions"`
		Negate     bool              `json:"negate"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse criteria node: %w", err)
	}

	if probe.Operator != "" {
		if probe.Operator != GroupAnd && probe.Operator != GroupOr {
			return nil, fmt.Errorf("unknown group operator %q", probe.Operator)
		}
		group := Group{
			Operator:   probe.Operator,
			Conditions: make([]Node, 0, len(probe.Conditions)),
		}
		for i, childRaw := range probe.Conditions {
			child, err := decodeNode(childRaw, depth+1)
			if err != nil {
				return nil, fmt.Errorf("condition %d: %w", i, err)
			}
			group.Conditions = append(group.Conditions, child)
		}
		return group, nil
	}

	return Condition{
		Field:   probe.Field,
		Match:   probe.Match,
		Pattern: probe.Pattern,
		Negate:  probe.Negate,
	}, nil
}

// EncodeCriteria serializes a tree back to its stored v2 JSON form.
func EncodeCriteria(tree CriteriaTree) ([]byte, error) {
	if tree.Root == nil {
		return nil, fmt.Errorf("criteria tree has no root node")
	}
	doc := struct {
		Root    Node `json:"root"`
		Version int  `json:"version"`
	}{Root: tree.Root, Version: CriteriaFormatVersion}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode criteria: %w", err)
	}
	return data, nil
}

// Depth returns the deepest nesting level of the tree (a bare condition
// is depth 1).
func (t CriteriaTree) Depth() int {
	return nodeDepth(t.Root)
}

func nodeDepth(n Node) int {
	group, ok := n.(Group)
	if !ok {
		return 1
	}
	deepest := 0
	for _, child := range group.Conditions {
		if d := nodeDepth(child); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}
