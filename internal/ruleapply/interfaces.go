// Package ruleapply applies the actions of matched import rules to
// transactions.
package ruleapply

import (
	"context"

	"github.com/budgetwise/ruleflow/internal/model"
)

// CategoryStore resolves category references with an ownership check.
// A missing or foreign-owned id returns an error.
type CategoryStore interface {
	FindCategory(ctx context.Context, id int64, userID string) (*model.Category, error)
}

// AccountStore resolves account references with an ownership check.
type AccountStore interface {
	FindAccount(ctx context.Context, id int64, userID string) (*model.Account, error)
}

// TagService persists a transaction's tag set.
type TagService interface {
	SetTransactionTags(ctx context.Context, transactionID string, tagIDs []int64) error
}
