// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/budgetwise/ruleflow/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Rule operations
	CreateRule(ctx context.Context, rule *model.Rule) error
	GetRule(ctx context.Context, id int64, userID string) (*model.Rule, error)
	GetActiveRules(ctx context.Context, userID string) ([]model.Rule, error)
	GetAllRules(ctx context.Context, userID string) ([]model.Rule, error)
	UpdateRule(ctx context.Context, rule *model.Rule) error
	DeleteRule(ctx context.Context, id int64, userID string) error
	SetRuleActive(ctx context.Context, id int64, userID string, active bool) error

	// Category operations
	CreateCategory(ctx context.Context, userID, name string, categoryType model.CategoryType) (*model.Category, error)
	FindCategory(ctx context.Context, id int64, userID string) (*model.Category, error)
	GetCategories(ctx context.Context, userID string) ([]model.Category, error)

	// Account operations
	CreateAccount(ctx context.Context, userID, name, institution string) (*model.Account, error)
	FindAccount(ctx context.Context, id int64, userID string) (*model.Account, error)
	GetAccounts(ctx context.Context, userID string) ([]model.Account, error)

	// Tag operations
	CreateTag(ctx context.Context, userID, name string) (*model.Tag, error)
	GetTags(ctx context.Context, userID string) ([]model.Tag, error)
	SetTransactionTags(ctx context.Context, transactionID string, tagIDs []int64) error
	GetTransactionTags(ctx context.Context, transactionID string) ([]int64, error)

	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactions(ctx context.Context, userID string, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *model.Transaction) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
