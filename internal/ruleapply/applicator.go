package ruleapply

import (
	"context"
	"fmt"

	"github.com/budgetwise/ruleflow/internal/common"
	"github.com/budgetwise/ruleflow/internal/model"
)

// Applicator mutates transactions according to the action lists of
// already-matched rules. It does not re-evaluate criteria; the caller
// decides which rules matched and in which order they apply.
//
// Like the evaluator, ApplyRules never fails on bad rule data: dangling
// category or account references, invalid transaction types, and
// malformed values log one warning each and skip that action, so one
// broken rule cannot abort the apply pass.
type Applicator struct {
	categories CategoryStore
	accounts   AccountStore
	tags       TagService
}

// NewApplicator creates a rule applicator. Nil collaborators are a
// caller bug and are rejected outright.
func NewApplicator(categories CategoryStore, accounts AccountStore, tags TagService) (*Applicator, error) {
	if categories == nil {
		return nil, fmt.Errorf("category store is required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if tags == nil {
		return nil, fmt.Errorf("tag service is required")
	}
	return &Applicator{categories: categories, accounts: accounts, tags: tags}, nil
}

// ApplyRules applies each matched rule's actions to the transaction in
// the order given, which is the authoritative priority order across
// rules. The first rule to set a target field wins that field; later
// rules' actions for it are skipped silently. A rule with the
// stopProcessing flag halts the pass after its own actions. The
// returned change-set contains only fields whose value actually
// changed.
func (a *Applicator) ApplyRules(ctx context.Context, txn *model.Transaction, matchedRules []model.Rule, userID string) model.ChangeSet {
	changes := model.ChangeSet{}
	// Scoped to this one call and this one transaction. Never hoist
	// onto the Applicator: it is shared across transactions.
	decided := make(map[string]bool)

	for i := range matchedRules {
		rule := &matchedRules[i]
		for _, action := range rule.Actions.Actions {
			a.applyAction(ctx, txn, rule, action, userID, decided, changes)
		}
		if rule.StopProcessing() {
			break
		}
	}

	return changes
}

func (a *Applicator) applyAction(ctx context.Context, txn *model.Transaction, rule *model.Rule, action model.Action, userID string, decided map[string]bool, changes model.ChangeSet) {
	target := action.Type.Target()
	if target == "" {
		common.LogWarn("unknown action type", common.Fields{
			"rule_id": rule.ID,
			"type":    string(action.Type),
		})
		return
	}

	// An earlier rule already set this field; first writer wins.
	if decided[target] {
		return
	}

	switch action.Type {
	case model.ActionSetCategory:
		a.applyCategory(ctx, txn, rule, action, userID, decided, changes)
	case model.ActionSetAccount:
		a.applyAccount(ctx, txn, rule, action, userID, decided, changes)
	case model.ActionSetVendor:
		applyStringField(rule, action, "vendor", &txn.Vendor, decided, changes)
	case model.ActionSetReference:
		applyStringField(rule, action, "reference", &txn.Reference, decided, changes)
	case model.ActionSetNotes:
		applyNotes(txn, rule, action, decided, changes)
	case model.ActionSetType:
		applyType(txn, rule, action, decided, changes)
	case model.ActionAddTags:
		a.applyTags(ctx, txn, rule, action, decided, changes)
	}
}

func (a *Applicator) applyCategory(ctx context.Context, txn *model.Transaction, rule *model.Rule, action model.Action, userID string, decided map[string]bool, changes model.ChangeSet) {
	id, ok := action.IDValue()
	if !ok {
		common.LogWarn("invalid category reference", common.Fields{
			"rule_id": rule.ID,
			"value":   action.Value,
		})
		return
	}
	if _, err := a.categories.FindCategory(ctx, id, userID); err != nil {
		common.LogWarn("invalid category reference", common.Fields{
			"rule_id":     rule.ID,
			"category_id": id,
			"error":       err.Error(),
		})
		return
	}
	if action.Behavior == model.BehaviorIfEmpty && txn.CategoryID != nil {
		return
	}

	old := idValue(txn.CategoryID)
	txn.CategoryID = &id
	decided["category"] = true
	if old == nil || *txn.CategoryID != old.(int64) {
		changes["category"] = model.FieldChange{Old: old, New: id}
	}
}

func (a *Applicator) applyAccount(ctx context.Context, txn *model.Transaction, rule *model.Rule, action model.Action, userID string, decided map[string]bool, changes model.ChangeSet) {
	id, ok := action.IDValue()
	if !ok {
		common.LogWarn("invalid account reference", common.Fields{
			"rule_id": rule.ID,
			"value":   action.Value,
		})
		return
	}
	if _, err := a.accounts.FindAccount(ctx, id, userID); err != nil {
		common.LogWarn("invalid account reference", common.Fields{
			"rule_id":    rule.ID,
			"account_id": id,
			"error":      err.Error(),
		})
		return
	}
	if action.Behavior == model.BehaviorIfEmpty && txn.AccountID != nil {
		return
	}

	old := idValue(txn.AccountID)
	txn.AccountID = &id
	decided["account"] = true
	if old == nil || *txn.AccountID != old.(int64) {
		changes["account"] = model.FieldChange{Old: old, New: id}
	}
}

// applyStringField handles the simple string setters (vendor,
// reference) with the always/if_empty behavior gate.
func applyStringField(rule *model.Rule, action model.Action, target string, field *string, decided map[string]bool, changes model.ChangeSet) {
	value, ok := action.StringValue()
	if !ok {
		common.LogWarn("invalid action value", common.Fields{
			"rule_id": rule.ID,
			"type":    string(action.Type),
			"value":   action.Value,
		})
		return
	}
	if action.Behavior == model.BehaviorIfEmpty && *field != "" {
		return
	}

	old := *field
	*field = value
	decided[target] = true
	if old != value {
		changes[target] = model.FieldChange{Old: old, New: value}
	}
}

// applyNotes handles set_notes. Replace overwrites; append concatenates
// with the action's separator, or the default, and omits the leading
// separator when the existing notes are empty.
func applyNotes(txn *model.Transaction, rule *model.Rule, action model.Action, decided map[string]bool, changes model.ChangeSet) {
	value, ok := action.StringValue()
	if !ok {
		common.LogWarn("invalid action value", common.Fields{
			"rule_id": rule.ID,
			"type":    string(action.Type),
			"value":   action.Value,
		})
		return
	}

	old := txn.Notes
	next := value
	if action.Behavior == model.BehaviorAppend && old != "" {
		separator := action.Separator
		if separator == "" {
			separator = model.DefaultNotesSeparator
		}
		next = old + separator + value
	}

	txn.Notes = next
	decided["notes"] = true
	if old != next {
		changes["notes"] = model.FieldChange{Old: old, New: next}
	}
}

// applyType handles set_type. Only the exact values "income" and
// "expense" are valid; anything else is skipped with a warning.
func applyType(txn *model.Transaction, rule *model.Rule, action model.Action, decided map[string]bool, changes model.ChangeSet) {
	value, ok := action.StringValue()
	if !ok || (value != model.TransactionIncome && value != model.TransactionExpense) {
		common.LogWarn("invalid transaction type", common.Fields{
			"rule_id": rule.ID,
			"value":   action.Value,
		})
		return
	}
	if action.Behavior == model.BehaviorIfEmpty && txn.Type != "" {
		return
	}

	old := txn.Type
	txn.Type = value
	decided["type"] = true
	if old != value {
		changes["type"] = model.FieldChange{Old: old, New: value}
	}
}

func (a *Applicator) applyTags(ctx context.Context, txn *model.Transaction, rule *model.Rule, action model.Action, decided map[string]bool, changes model.ChangeSet) {
	ids, ok := action.IDListValue()
	if !ok {
		common.LogWarn("invalid tag list", common.Fields{
			"rule_id": rule.ID,
			"value":   action.Value,
		})
		return
	}

	next := ids
	if action.Behavior == model.BehaviorMerge {
		next = mergeTagIDs(txn.Tags, ids)
	}

	if err := a.tags.SetTransactionTags(ctx, txn.ID, next); err != nil {
		common.LogWarn("failed to update transaction tags", common.Fields{
			"rule_id":        rule.ID,
			"transaction_id": txn.ID,
			"error":          err.Error(),
		})
		return
	}

	old := txn.Tags
	txn.Tags = next
	decided["tags"] = true
	if !equalTagIDs(old, next) {
		changes["tags"] = model.FieldChange{Old: old, New: next}
	}
}

// mergeTagIDs unions two tag id lists, keeping existing order and
// appending new ids in their given order.
func mergeTagIDs(existing, added []int64) []int64 {
	merged := make([]int64, 0, len(existing)+len(added))
	seen := make(map[int64]bool, len(existing)+len(added))
	for _, id := range existing {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	for _, id := range added {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	return merged
}

func equalTagIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// idValue unwraps an optional id for change-set reporting.
func idValue(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
