package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/budgetwise/ruleflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidRule        = errors.New("invalid rule")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRule validates a rule before persisting it.
func validateRule(rule *model.Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRule)
	}
	if rule.Criteria.Root == nil {
		return fmt.Errorf("%w: criteria is required", ErrInvalidRule)
	}
	if len(rule.Actions.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidRule)
	}
	if len(rule.Actions.Actions) > model.MaxActionsPerRule {
		return fmt.Errorf("%w: more than %d actions", ErrInvalidRule, model.MaxActionsPerRule)
	}
	return nil
}

// validateTransaction validates a transaction before persisting it.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if strings.TrimSpace(txn.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidTransaction)
	}
	return nil
}
