// Package testutil provides test helpers for the ruleflow project.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/budgetwise/ruleflow/internal/model"
	"github.com/budgetwise/ruleflow/internal/storage"
)

// TestUser is the default user id seeded test data belongs to.
const TestUser = "user-1"

// TestDB wraps an in-memory SQLite storage with seeding helpers.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory test database with automatic
// cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedCategory creates a category or fails the test.
func (db *TestDB) SeedCategory(userID, name string, categoryType model.CategoryType) *model.Category {
	db.t.Helper()
	cat, err := db.Storage.CreateCategory(context.Background(), userID, name, categoryType)
	if err != nil {
		db.t.Fatalf("failed to seed category %q: %v", name, err)
	}
	return cat
}

// SeedAccount creates an account or fails the test.
func (db *TestDB) SeedAccount(userID, name string) *model.Account {
	db.t.Helper()
	acct, err := db.Storage.CreateAccount(context.Background(), userID, name, "")
	if err != nil {
		db.t.Fatalf("failed to seed account %q: %v", name, err)
	}
	return acct
}

// SeedTag creates a tag or fails the test.
func (db *TestDB) SeedTag(userID, name string) *model.Tag {
	db.t.Helper()
	tag, err := db.Storage.CreateTag(context.Background(), userID, name)
	if err != nil {
		db.t.Fatalf("failed to seed tag %q: %v", name, err)
	}
	return tag
}

// SeedTransaction creates and stores a transaction or fails the test.
func (db *TestDB) SeedTransaction(userID, description string, amount float64, date string) *model.Transaction {
	db.t.Helper()

	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		db.t.Fatalf("bad transaction date %q: %v", date, err)
	}

	txn := model.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Description: description,
		Amount:      amount,
		Date:        parsed,
	}
	txn.Hash = txn.GenerateHash()

	if err := db.Storage.SaveTransactions(context.Background(), []model.Transaction{txn}); err != nil {
		db.t.Fatalf("failed to seed transaction: %v", err)
	}
	return &txn
}

// SeedRule creates a rule or fails the test.
func (db *TestDB) SeedRule(userID, name string, priority int, root model.Node, actions ...model.Action) *model.Rule {
	db.t.Helper()

	rule := &model.Rule{
		UserID:   userID,
		Name:     name,
		Priority: priority,
		IsActive: true,
		Criteria: model.CriteriaTree{Version: model.CriteriaFormatVersion, Root: root},
		Actions: model.ActionSet{
			Version:        model.ActionsFormatVersion,
			StopProcessing: false,
			Actions:        actions,
		},
	}
	if err := db.Storage.CreateRule(context.Background(), rule); err != nil {
		db.t.Fatalf("failed to seed rule %q: %v", name, err)
	}
	return rule
}
