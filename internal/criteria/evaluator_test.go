package criteria

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetwise/ruleflow/internal/model"
)

func cond(field model.FieldName, match model.MatchType, pattern string) model.Condition {
	return model.Condition{Field: field, Match: match, Pattern: pattern}
}

func negated(c model.Condition) model.Condition {
	c.Negate = true
	return c
}

func group(op model.GroupOperator, children ...model.Node) model.Group {
	return model.Group{Operator: op, Conditions: children}
}

func tree(root model.Node) model.CriteriaTree {
	return model.CriteriaTree{Version: model.CriteriaFormatVersion, Root: root}
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return parsed
}

func TestEvaluator_StringConditions(t *testing.T) {
	evaluator := NewEvaluator()
	txn := model.Transaction{
		Vendor:      "aws",
		Description: "AWS Cloud Services monthly invoice",
		Reference:   "INV-2024-0042",
	}

	tests := []struct {
		name string
		node model.Node
		want bool
	}{
		{
			name: "equals is case-insensitive",
			node: cond(model.FieldVendor, model.MatchEquals, "AWS"),
			want: true,
		},
		{
			name: "equals requires full match",
			node: cond(model.FieldVendor, model.MatchEquals, "AWS Cloud"),
			want: false,
		},
		{
			name: "contains is case-insensitive",
			node: cond(model.FieldDescription, model.MatchContains, "cloud services"),
			want: true,
		},
		{
			name: "contains non-matching",
			node: cond(model.FieldDescription, model.MatchContains, "azure"),
			want: false,
		},
		{
			name: "starts_with",
			node: cond(model.FieldDescription, model.MatchStartsWith, "aws"),
			want: true,
		},
		{
			name: "starts_with mid-string",
			node: cond(model.FieldDescription, model.MatchStartsWith, "cloud"),
			want: false,
		},
		{
			name: "ends_with",
			node: cond(model.FieldDescription, model.MatchEndsWith, "INVOICE"),
			want: true,
		},
		{
			name: "ends_with non-matching",
			node: cond(model.FieldDescription, model.MatchEndsWith, "monthly"),
			want: false,
		},
		{
			name: "regex match",
			node: cond(model.FieldReference, model.MatchRegex, `^INV-\d{4}-\d+$`),
			want: true,
		},
		{
			name: "regex non-matching",
			node: cond(model.FieldReference, model.MatchRegex, `^PO-\d+$`),
			want: false,
		},
		{
			name: "invalid regex evaluates false, never panics",
			node: cond(model.FieldReference, model.MatchRegex, `[unterminated`),
			want: false,
		},
		{
			name: "invalid regex with negate still evaluates false",
			node: negated(cond(model.FieldReference, model.MatchRegex, `[unterminated`)),
			want: false,
		},
		{
			name: "empty pattern is a wildcard",
			node: cond(model.FieldVendor, model.MatchContains, ""),
			want: true,
		},
		{
			name: "negated wildcard never matches",
			node: negated(cond(model.FieldVendor, model.MatchContains, "")),
			want: false,
		},
		{
			name: "negate inverts a match",
			node: negated(cond(model.FieldVendor, model.MatchEquals, "AWS")),
			want: false,
		},
		{
			name: "negate inverts a non-match",
			node: negated(cond(model.FieldVendor, model.MatchEquals, "azure")),
			want: true,
		},
		{
			name: "missing field with non-empty pattern never matches",
			node: cond(model.FieldNotes, model.MatchContains, "anything"),
			want: false,
		},
		{
			name: "missing field with empty pattern matches vacuously",
			node: cond(model.FieldNotes, model.MatchContains, ""),
			want: true,
		},
		{
			name: "numeric match type on string field evaluates false",
			node: cond(model.FieldVendor, model.MatchGreaterThan, "10"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluator.Evaluate(tree(tt.node), txn))
		})
	}
}

func TestEvaluator_AmountConditions(t *testing.T) {
	evaluator := NewEvaluator()

	tests := []struct {
		name   string
		node   model.Node
		amount float64
		want   bool
	}{
		{
			name:   "equals exact",
			node:   cond(model.FieldAmount, model.MatchEquals, "50.00"),
			amount: 50.00,
			want:   true,
		},
		{
			name:   "equals has no epsilon tolerance",
			node:   cond(model.FieldAmount, model.MatchEquals, "50.00"),
			amount: 50.01,
			want:   false,
		},
		{
			name:   "greater_than strict above",
			node:   cond(model.FieldAmount, model.MatchGreaterThan, "100"),
			amount: 100.01,
			want:   true,
		},
		{
			name:   "greater_than strict at boundary",
			node:   cond(model.FieldAmount, model.MatchGreaterThan, "100"),
			amount: 100.00,
			want:   false,
		},
		{
			name:   "less_than strict below",
			node:   cond(model.FieldAmount, model.MatchLessThan, "20"),
			amount: 19.99,
			want:   true,
		},
		{
			name:   "less_than strict at boundary",
			node:   cond(model.FieldAmount, model.MatchLessThan, "20"),
			amount: 20.00,
			want:   false,
		},
		{
			name:   "between inclusive at min",
			node:   cond(model.FieldAmount, model.MatchBetween, `{"min": 10, "max": 50}`),
			amount: 10.00,
			want:   true,
		},
		{
			name:   "between inclusive at max",
			node:   cond(model.FieldAmount, model.MatchBetween, `{"min": 10, "max": 50}`),
			amount: 50.00,
			want:   true,
		},
		{
			name:   "between below min",
			node:   cond(model.FieldAmount, model.MatchBetween, `{"min": 10, "max": 50}`),
			amount: 9.99,
			want:   false,
		},
		{
			name:   "between above max",
			node:   cond(model.FieldAmount, model.MatchBetween, `{"min": 10, "max": 50}`),
			amount: 50.01,
			want:   false,
		},
		{
			name:   "between accepts numeric strings",
			node:   cond(model.FieldAmount, model.MatchBetween, `{"min": "10.00", "max": "50.00"}`),
			amount: 25.00,
			want:   true,
		},
		{
			name:   "malformed between JSON evaluates false",
			node:   cond(model.FieldAmount, model.MatchBetween, `not json`),
			amount: 25.00,
			want:   false,
		},
		{
			name:   "between missing max evaluates false",
			node:   cond(model.FieldAmount, model.MatchBetween, `{"min": 10}`),
			amount: 25.00,
			want:   false,
		},
		{
			name:   "non-numeric pattern evaluates false",
			node:   cond(model.FieldAmount, model.MatchEquals, "fifty"),
			amount: 50.00,
			want:   false,
		},
		{
			name:   "string match type on amount field evaluates false",
			node:   cond(model.FieldAmount, model.MatchContains, "50"),
			amount: 50.00,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := model.Transaction{Amount: tt.amount}
			assert.Equal(t, tt.want, evaluator.Evaluate(tree(tt.node), txn))
		})
	}
}

func TestEvaluator_DateConditions(t *testing.T) {
	evaluator := NewEvaluator()

	tests := []struct {
		name string
		date string
		node model.Node
		want bool
	}{
		{
			name: "equals on the same date",
			date: "2024-03-15",
			node: cond(model.FieldDate, model.MatchEquals, "2024-03-15"),
			want: true,
		},
		{
			name: "equals on another date",
			date: "2024-03-16",
			node: cond(model.FieldDate, model.MatchEquals, "2024-03-15"),
			want: false,
		},
		{
			name: "before excludes the boundary",
			date: "2024-03-15",
			node: cond(model.FieldDate, model.MatchBefore, "2024-03-15"),
			want: false,
		},
		{
			name: "before matches earlier dates",
			date: "2024-03-14",
			node: cond(model.FieldDate, model.MatchBefore, "2024-03-15"),
			want: true,
		},
		{
			name: "after excludes the boundary",
			date: "2024-03-15",
			node: cond(model.FieldDate, model.MatchAfter, "2024-03-15"),
			want: false,
		},
		{
			name: "after matches later dates",
			date: "2024-03-16",
			node: cond(model.FieldDate, model.MatchAfter, "2024-03-15"),
			want: true,
		},
		{
			name: "between inclusive at both boundaries (min)",
			date: "2024-01-01",
			node: cond(model.FieldDate, model.MatchBetween, `{"min": "2024-01-01", "max": "2024-01-31"}`),
			want: true,
		},
		{
			name: "between inclusive at both boundaries (max)",
			date: "2024-01-31",
			node: cond(model.FieldDate, model.MatchBetween, `{"min": "2024-01-01", "max": "2024-01-31"}`),
			want: true,
		},
		{
			name: "between outside the range",
			date: "2024-02-01",
			node: cond(model.FieldDate, model.MatchBetween, `{"min": "2024-01-01", "max": "2024-01-31"}`),
			want: false,
		},
		{
			name: "malformed date pattern evaluates false",
			date: "2024-03-15",
			node: cond(model.FieldDate, model.MatchEquals, "March 15th"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := model.Transaction{Date: mustDate(t, tt.date)}
			assert.Equal(t, tt.want, evaluator.Evaluate(tree(tt.node), txn))
		})
	}
}

func TestEvaluator_Groups(t *testing.T) {
	evaluator := NewEvaluator()
	txn := model.Transaction{Vendor: "amazon", Amount: 25.00}

	// matches / misses against txn above
	hit := cond(model.FieldVendor, model.MatchContains, "ama")
	miss := cond(model.FieldVendor, model.MatchContains, "netflix")

	tests := []struct {
		name string
		node model.Node
		want bool
	}{
		{name: "AND true true", node: group(model.GroupAnd, hit, hit), want: true},
		{name: "AND true false", node: group(model.GroupAnd, hit, miss), want: false},
		{name: "AND false true", node: group(model.GroupAnd, miss, hit), want: false},
		{name: "AND false false", node: group(model.GroupAnd, miss, miss), want: false},
		{name: "OR true true", node: group(model.GroupOr, hit, hit), want: true},
		{name: "OR true false", node: group(model.GroupOr, hit, miss), want: true},
		{name: "OR false true", node: group(model.GroupOr, miss, hit), want: true},
		{name: "OR false false", node: group(model.GroupOr, miss, miss), want: false},
		{name: "empty AND is vacuously true", node: group(model.GroupAnd), want: true},
		{name: "empty OR is vacuously false", node: group(model.GroupOr), want: false},
		{
			name: "negate applies inside a group",
			node: group(model.GroupAnd, hit, negated(miss)),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluator.Evaluate(tree(tt.node), txn))
		})
	}
}

func TestEvaluator_DeepNesting(t *testing.T) {
	evaluator := NewEvaluator()
	txn := model.Transaction{Vendor: "amazon", Amount: 25.00, Description: "AMZN Mktp"}

	hit := cond(model.FieldVendor, model.MatchEquals, "Amazon")
	miss := cond(model.FieldVendor, model.MatchEquals, "Netflix")

	// Five levels of groups; equivalent to hit AND hit by associativity.
	deep := group(model.GroupAnd,
		group(model.GroupOr,
			group(model.GroupAnd,
				group(model.GroupOr,
					group(model.GroupAnd, hit),
					miss,
				),
				hit,
			),
			miss,
		),
		hit,
	)

	assert.Equal(t, 6, tree(deep).Depth())
	assert.True(t, evaluator.Evaluate(tree(deep), txn))

	// Flip the innermost leaf and the whole tree flips.
	broken := group(model.GroupAnd,
		group(model.GroupOr,
			group(model.GroupAnd,
				group(model.GroupOr,
					group(model.GroupAnd, miss),
					miss,
				),
				hit,
			),
			miss,
		),
		hit,
	)
	assert.False(t, evaluator.Evaluate(tree(broken), txn))
}

func TestEvaluator_LegacyV1Equivalence(t *testing.T) {
	evaluator := NewEvaluator()
	txn := model.Transaction{Vendor: "Starbucks Coffee"}

	v1Raw := []byte(`{"field": "vendor", "matchType": "contains", "pattern": "starbucks"}`)
	v2Raw := []byte(`{
		"version": 2,
		"root": {
			"operator": "AND",
			"conditions": [
				{"field": "vendor", "matchType": "contains", "pattern": "starbucks"}
			]
		}
	}`)

	v1Tree, err := model.DecodeCriteria(v1Raw, 1)
	require.NoError(t, err)
	v2Tree, err := model.DecodeCriteria(v2Raw, 2)
	require.NoError(t, err)

	assert.True(t, evaluator.Evaluate(v1Tree, txn))
	assert.True(t, evaluator.Evaluate(v2Tree, txn))

	missTxn := model.Transaction{Vendor: "Peets"}
	assert.False(t, evaluator.Evaluate(v1Tree, missTxn))
	assert.False(t, evaluator.Evaluate(v2Tree, missTxn))
}

func TestEvaluator_EvaluateRaw(t *testing.T) {
	evaluator := NewEvaluator()
	txn := model.Transaction{Vendor: "Lyft"}

	t.Run("valid document", func(t *testing.T) {
		raw := []byte(`{"version": 2, "root": {"field": "vendor", "matchType": "equals", "pattern": "lyft"}}`)
		assert.True(t, evaluator.EvaluateRaw(raw, 2, txn))
	})

	t.Run("malformed document evaluates false", func(t *testing.T) {
		assert.False(t, evaluator.EvaluateRaw([]byte(`{broken`), 2, txn))
	})

	t.Run("unsupported version evaluates false", func(t *testing.T) {
		assert.False(t, evaluator.EvaluateRaw([]byte(`{}`), 9, txn))
	})
}

func TestEvaluator_NeverMutatesTransaction(t *testing.T) {
	evaluator := NewEvaluator()
	txn := model.Transaction{Vendor: "Amazon", Amount: 42.00, Notes: "original"}
	before := txn

	evaluator.Evaluate(tree(group(model.GroupAnd,
		cond(model.FieldVendor, model.MatchContains, "ama"),
		cond(model.FieldAmount, model.MatchBetween, `{"min": 1, "max": 100}`),
	)), txn)

	assert.Equal(t, before, txn)
}
