package criteria

import (
	"fmt"
	"regexp"

	"github.com/budgetwise/ruleflow/internal/model"
)

// Validate statically checks a criteria tree and reports every problem
// as a human-readable string. It never evaluates anything against a
// transaction; it exists for rule-authoring surfaces. Live matching
// deliberately tolerates everything reported here by degrading to a
// non-match.
func (e *Evaluator) Validate(tree model.CriteriaTree) model.ValidationResult {
	result := model.NewValidationResult()

	if tree.Root == nil {
		result.AddError("criteria has no root node")
		return result
	}

	validateNode(tree.Root, "root", 1, &result)
	return result
}

func validateNode(node model.Node, path string, depth int, result *model.ValidationResult) {
	if depth > model.MaxCriteriaDepth {
		result.AddError(fmt.Sprintf("%s: nesting exceeds %d levels", path, model.MaxCriteriaDepth))
		return
	}

	switch n := node.(type) {
	case model.Group:
		validateGroup(n, path, depth, result)
	case model.Condition:
		validateCondition(n, path, result)
	default:
		result.AddError(fmt.Sprintf("%s: unknown node type", path))
	}
}

func validateGroup(group model.Group, path string, depth int, result *model.ValidationResult) {
	if group.Operator != model.GroupAnd && group.Operator != model.GroupOr {
		result.AddError(fmt.Sprintf("%s: unknown group operator %q", path, group.Operator))
	}
	if len(group.Conditions) == 0 {
		result.AddError(fmt.Sprintf("%s: group has no conditions", path))
	}
	for i, child := range group.Conditions {
		validateNode(child, fmt.Sprintf("%s.conditions[%d]", path, i), depth+1, result)
	}
}

func validateCondition(cond model.Condition, path string, result *model.ValidationResult) {
	if cond.Field == "" {
		result.AddError(fmt.Sprintf("%s: condition is missing a field", path))
		return
	}

	class := cond.Field.Class()
	if class == model.FieldClassUnknown {
		result.AddError(fmt.Sprintf("%s: unknown field %q", path, cond.Field))
		return
	}

	if cond.Match == "" {
		result.AddError(fmt.Sprintf("%s: condition is missing a match type", path))
		return
	}
	if !cond.Match.ValidFor(class) {
		result.AddError(fmt.Sprintf("%s: match type %q is not valid for field %q", path, cond.Match, cond.Field))
		return
	}

	if cond.Pattern == "" {
		result.AddError(fmt.Sprintf("%s: condition is missing a pattern", path))
		return
	}

	validatePattern(cond, path, result)
}

func validatePattern(cond model.Condition, path string, result *model.ValidationResult) {
	switch cond.Field.Class() {
	case model.FieldClassString:
		if cond.Match == model.MatchRegex {
			if _, err := regexp.Compile(cond.Pattern); err != nil {
				result.AddError(fmt.Sprintf("%s: invalid regex: %v", path, err))
			}
		}
	case model.FieldClassNumeric:
		if cond.Match == model.MatchBetween {
			if _, _, err := parseAmountRange(cond.Pattern); err != nil {
				result.AddError(fmt.Sprintf("%s: invalid amount range: %v", path, err))
			}
		} else if _, err := parseAmount(cond.Pattern); err != nil {
			result.AddError(fmt.Sprintf("%s: invalid amount pattern: %v", path, err))
		}
	case model.FieldClassDate:
		if cond.Match == model.MatchBetween {
			if _, _, err := parseDateRange(cond.Pattern); err != nil {
				result.AddError(fmt.Sprintf("%s: invalid date range: %v", path, err))
			}
		} else if _, err := parseDate(cond.Pattern); err != nil {
			result.AddError(fmt.Sprintf("%s: invalid date pattern: %v", path, err))
		}
	}
}
