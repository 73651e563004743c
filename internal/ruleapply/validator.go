package ruleapply

import (
	"context"
	"fmt"

	"github.com/budgetwise/ruleflow/internal/model"
)

// ValidateActions statically checks a rule's action list for authoring
// surfaces. Unlike ApplyRules, which skips dangling references with a
// warning, this eagerly resolves category and account ids so the author
// learns about them while editing the rule.
func (a *Applicator) ValidateActions(ctx context.Context, set model.ActionSet, userID string) model.ValidationResult {
	result := model.NewValidationResult()

	if len(set.Actions) > model.MaxActionsPerRule {
		result.AddError(fmt.Sprintf("rule has %d actions; the maximum is %d", len(set.Actions), model.MaxActionsPerRule))
	}

	for i, action := range set.Actions {
		path := fmt.Sprintf("actions[%d]", i)

		if action.Type == "" {
			result.AddError(fmt.Sprintf("%s: action is missing a type", path))
			continue
		}
		if action.Type.Target() == "" {
			result.AddError(fmt.Sprintf("%s: unknown action type %q", path, action.Type))
			continue
		}
		if action.Behavior != "" && !action.Behavior.ValidFor(action.Type) {
			result.AddError(fmt.Sprintf("%s: behavior %q is not valid for %s", path, action.Behavior, action.Type))
		}

		a.validateActionValue(ctx, action, userID, path, &result)
	}

	return result
}

func (a *Applicator) validateActionValue(ctx context.Context, action model.Action, userID, path string, result *model.ValidationResult) {
	switch action.Type {
	case model.ActionSetCategory:
		id, ok := action.IDValue()
		if !ok {
			result.AddError(fmt.Sprintf("%s: value is not a category id", path))
			return
		}
		if _, err := a.categories.FindCategory(ctx, id, userID); err != nil {
			result.AddError(fmt.Sprintf("%s: category %d not found: %v", path, id, err))
		}
	case model.ActionSetAccount:
		id, ok := action.IDValue()
		if !ok {
			result.AddError(fmt.Sprintf("%s: value is not an account id", path))
			return
		}
		if _, err := a.accounts.FindAccount(ctx, id, userID); err != nil {
			result.AddError(fmt.Sprintf("%s: account %d not found: %v", path, id, err))
		}
	case model.ActionSetVendor, model.ActionSetNotes, model.ActionSetReference:
		if _, ok := action.StringValue(); !ok {
			result.AddError(fmt.Sprintf("%s: value is not a string", path))
		}
	case model.ActionSetType:
		value, ok := action.StringValue()
		if !ok || (value != model.TransactionIncome && value != model.TransactionExpense) {
			result.AddError(fmt.Sprintf("%s: value must be %q or %q", path, model.TransactionIncome, model.TransactionExpense))
		}
	case model.ActionAddTags:
		if _, ok := action.IDListValue(); !ok {
			result.AddError(fmt.Sprintf("%s: value is not a list of tag ids", path))
		}
	}
}
