// Package criteria evaluates rule criteria trees against transactions.
package criteria

import (
	"strings"
	"time"

	"github.com/budgetwise/ruleflow/internal/common"
	"github.com/budgetwise/ruleflow/internal/model"
)

// Evaluator decides whether a rule's criteria tree matches a
// transaction. It is stateless and safe to share; all methods are pure
// functions of their inputs apart from diagnostic logging.
//
// Evaluate never fails: malformed patterns, uncompilable regexes, and
// unknown fields or match types degrade to a non-match with one logged
// diagnostic, so one broken rule cannot block the rest of an import.
type Evaluator struct{}

// NewEvaluator creates a criteria evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate reports whether the criteria tree matches the transaction.
func (e *Evaluator) Evaluate(tree model.CriteriaTree, txn model.Transaction) bool {
	if tree.Root == nil {
		common.LogWarn("criteria tree has no root node", common.Fields{})
		return false
	}
	return e.evalNode(tree.Root, &txn, 0)
}

// EvaluateRaw decodes a stored criteria document and evaluates it.
// Documents that fail to decode evaluate false with a logged
// diagnostic.
func (e *Evaluator) EvaluateRaw(raw []byte, version int, txn model.Transaction) bool {
	tree, err := model.DecodeCriteria(raw, version)
	if err != nil {
		common.LogError(err, "failed to decode criteria document", common.Fields{
			"version": version,
		})
		return false
	}
	return e.Evaluate(tree, txn)
}

func (e *Evaluator) evalNode(node model.Node, txn *model.Transaction, depth int) bool {
	if depth > model.MaxCriteriaDepth {
		common.LogWarn("criteria nesting exceeds depth limit", common.Fields{
			"limit": model.MaxCriteriaDepth,
		})
		return false
	}

	switch n := node.(type) {
	case model.Group:
		return e.evalGroup(n, txn, depth)
	case model.Condition:
		return e.evalCondition(n, txn)
	}

	common.LogWarn("unknown criteria node type", common.Fields{})
	return false
}

// evalGroup combines child results with short-circuit AND/OR. An empty
// group evaluates to the operator's identity element: AND of nothing is
// true, OR of nothing is false.
func (e *Evaluator) evalGroup(group model.Group, txn *model.Transaction, depth int) bool {
	switch group.Operator {
	case model.GroupAnd:
		for _, child := range group.Conditions {
			if !e.evalNode(child, txn, depth+1) {
				return false
			}
		}
		return true
	case model.GroupOr:
		for _, child := range group.Conditions {
			if e.evalNode(child, txn, depth+1) {
				return true
			}
		}
		return false
	}

	common.LogWarn("unknown group operator", common.Fields{
		"operator": string(group.Operator),
	})
	return false
}

// evalCondition computes the raw match for one leaf and applies negate.
// A condition that cannot be computed at all (unknown field, match type
// not valid for the field, malformed pattern) is a non-match regardless
// of negate.
func (e *Evaluator) evalCondition(cond model.Condition, txn *model.Transaction) bool {
	var raw, ok bool

	switch cond.Field.Class() {
	case model.FieldClassString:
		raw, ok = e.matchString(cond, txn.FieldValue(cond.Field))
	case model.FieldClassNumeric:
		raw, ok = e.matchAmount(cond, txn.Amount)
	case model.FieldClassDate:
		raw, ok = e.matchDate(cond, txn.Date)
	default:
		common.LogWarn("condition references unknown field", common.Fields{
			"field": string(cond.Field),
		})
		return false
	}

	if !ok {
		return false
	}
	if cond.Negate {
		return !raw
	}
	return raw
}

// matchString handles the string-class match types. Matching is
// case-insensitive. An empty pattern matches unconditionally; it is the
// wildcard escape hatch, not an error. A missing field value arrives
// here as an empty string and therefore only matches empty patterns.
func (e *Evaluator) matchString(cond model.Condition, value string) (matched, ok bool) {
	if cond.Pattern == "" {
		return true, true
	}

	haystack := strings.ToLower(value)
	needle := strings.ToLower(cond.Pattern)

	switch cond.Match {
	case model.MatchContains:
		return strings.Contains(haystack, needle), true
	case model.MatchStartsWith:
		return strings.HasPrefix(haystack, needle), true
	case model.MatchEndsWith:
		return strings.HasSuffix(haystack, needle), true
	case model.MatchEquals:
		return haystack == needle, true
	case model.MatchRegex:
		matched, err := common.MatchRegex(cond.Pattern, value)
		if err != nil {
			common.LogError(err, "invalid regex pattern in condition", common.Fields{
				"field":   string(cond.Field),
				"pattern": cond.Pattern,
			})
			return false, false
		}
		return matched, true
	}

	common.LogWarn("match type not valid for string field", common.Fields{
		"field":     string(cond.Field),
		"matchType": string(cond.Match),
	})
	return false, false
}

// matchAmount handles the numeric match types. Comparison is exact
// float64 comparison; callers are expected to store canonical decimal
// strings, so no epsilon is applied. Between is inclusive on both ends.
func (e *Evaluator) matchAmount(cond model.Condition, amount float64) (matched, ok bool) {
	switch cond.Match {
	case model.MatchEquals, model.MatchGreaterThan, model.MatchLessThan:
		bound, err := parseAmount(cond.Pattern)
		if err != nil {
			common.LogError(err, "invalid amount pattern in condition", common.Fields{
				"field":   string(cond.Field),
				"pattern": cond.Pattern,
			})
			return false, false
		}
		switch cond.Match {
		case model.MatchEquals:
			return amount == bound, true
		case model.MatchGreaterThan:
			return amount > bound, true
		default:
			return amount < bound, true
		}
	case model.MatchBetween:
		low, high, err := parseAmountRange(cond.Pattern)
		if err != nil {
			common.LogError(err, "invalid amount range in condition", common.Fields{
				"field":   string(cond.Field),
				"pattern": cond.Pattern,
			})
			return false, false
		}
		return amount >= low && amount <= high, true
	}

	common.LogWarn("match type not valid for amount field", common.Fields{
		"field":     string(cond.Field),
		"matchType": string(cond.Match),
	})
	return false, false
}

// matchDate handles the date match types over ISO YYYY-MM-DD values,
// compared lexicographically (equivalent to chronological order for
// this format). Before and after exclude the boundary date; between is
// inclusive on both ends. A transaction with no date never matches.
func (e *Evaluator) matchDate(cond model.Condition, date time.Time) (matched, ok bool) {
	if date.IsZero() {
		return false, true
	}
	value := date.Format("2006-01-02")

	switch cond.Match {
	case model.MatchEquals, model.MatchBefore, model.MatchAfter:
		bound, err := parseDate(cond.Pattern)
		if err != nil {
			common.LogError(err, "invalid date pattern in condition", common.Fields{
				"field":   string(cond.Field),
				"pattern": cond.Pattern,
			})
			return false, false
		}
		switch cond.Match {
		case model.MatchEquals:
			return value == bound, true
		case model.MatchBefore:
			return value < bound, true
		default:
			return value > bound, true
		}
	case model.MatchBetween:
		low, high, err := parseDateRange(cond.Pattern)
		if err != nil {
			common.LogError(err, "invalid date range in condition", common.Fields{
				"field":   string(cond.Field),
				"pattern": cond.Pattern,
			})
			return false, false
		}
		return value >= low && value <= high, true
	}

	common.LogWarn("match type not valid for date field", common.Fields{
		"field":     string(cond.Field),
		"matchType": string(cond.Match),
	})
	return false, false
}
