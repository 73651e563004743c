package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetwise/ruleflow/internal/model"
	"github.com/budgetwise/ruleflow/internal/testutil"
)

func cond(field model.FieldName, match model.MatchType, pattern string) model.Condition {
	return model.Condition{Field: field, Match: match, Pattern: pattern}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	t.Run("loads active rules", func(t *testing.T) {
		db.SeedRule(testutil.TestUser, "coffee", 10,
			cond(model.FieldDescription, model.MatchContains, "coffee"),
			model.Action{Type: model.ActionSetVendor, Value: "Coffee Shop"})

		eng, err := New(ctx, db.Storage, testutil.TestUser, Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, eng.RuleCount())
	})

	t.Run("nil storage", func(t *testing.T) {
		_, err := New(ctx, nil, testutil.TestUser, Options{})
		assert.Error(t, err)
	})

	t.Run("empty user", func(t *testing.T) {
		_, err := New(ctx, db.Storage, "", Options{})
		assert.Error(t, err)
	})
}

func TestProcess_AppliesAndPersists(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	shopping := db.SeedCategory(testutil.TestUser, "Shopping", model.CategoryTypeExpense)
	db.SeedRule(testutil.TestUser, "amazon", 10,
		cond(model.FieldDescription, model.MatchContains, "amazon"),
		model.Action{Type: model.ActionSetCategory, Value: float64(shopping.ID)},
		model.Action{Type: model.ActionSetVendor, Value: "Amazon"})

	txn := db.SeedTransaction(testutil.TestUser, "AMAZON MARKETPLACE", -42.99, "2024-03-15")

	eng, err := New(ctx, db.Storage, testutil.TestUser, Options{})
	require.NoError(t, err)

	result, err := eng.Process(ctx, txn)
	require.NoError(t, err)
	assert.Len(t, result.MatchedIDs, 1)
	assert.Len(t, result.Changes, 2)
	assert.Equal(t, "Amazon", txn.Vendor)
	require.NotNil(t, txn.CategoryID)
	assert.Equal(t, shopping.ID, *txn.CategoryID)

	// The mutation must be persisted.
	stored, err := db.Storage.GetTransactionByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amazon", stored.Vendor)
	require.NotNil(t, stored.CategoryID)
	assert.Equal(t, shopping.ID, *stored.CategoryID)
}

func TestProcess_DryRun(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	reviewed := db.SeedTag(testutil.TestUser, "reviewed")
	db.SeedRule(testutil.TestUser, "tag coffee", 10,
		cond(model.FieldDescription, model.MatchContains, "coffee"),
		model.Action{Type: model.ActionSetVendor, Value: "Coffee Shop"},
		model.Action{Type: model.ActionAddTags, Value: []any{float64(reviewed.ID)}})

	txn := db.SeedTransaction(testutil.TestUser, "COFFEE SHOP #42", -4.50, "2024-03-15")

	eng, err := New(ctx, db.Storage, testutil.TestUser, Options{DryRun: true})
	require.NoError(t, err)

	result, err := eng.Process(ctx, txn)
	require.NoError(t, err)
	assert.Equal(t, "Coffee Shop", txn.Vendor)
	assert.Contains(t, result.Changes, "vendor")
	assert.Contains(t, result.Changes, "tags")

	// Nothing hits the database in dry-run mode.
	stored, err := db.Storage.GetTransactionByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Vendor)
	assert.Empty(t, stored.Tags)
}

func TestProcess_NoMatch(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	db.SeedRule(testutil.TestUser, "amazon", 10,
		cond(model.FieldDescription, model.MatchContains, "amazon"),
		model.Action{Type: model.ActionSetVendor, Value: "Amazon"})

	txn := db.SeedTransaction(testutil.TestUser, "GROCERY STORE", -20, "2024-03-15")

	eng, err := New(ctx, db.Storage, testutil.TestUser, Options{})
	require.NoError(t, err)

	result, err := eng.Process(ctx, txn)
	require.NoError(t, err)
	assert.Empty(t, result.MatchedIDs)
	assert.Empty(t, result.Changes)
	assert.Empty(t, txn.Vendor)
}

func TestProcess_PriorityAndConflict(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	// Both rules match; the higher priority one runs first and wins
	// the vendor field.
	db.SeedRule(testutil.TestUser, "generic", 1,
		cond(model.FieldDescription, model.MatchContains, "store"),
		model.Action{Type: model.ActionSetVendor, Value: "Some Store"},
		model.Action{Type: model.ActionSetReference, Value: "generic"})
	db.SeedRule(testutil.TestUser, "specific", 100,
		cond(model.FieldDescription, model.MatchContains, "grocery"),
		model.Action{Type: model.ActionSetVendor, Value: "Grocery Store"})

	txn := db.SeedTransaction(testutil.TestUser, "GROCERY STORE #9", -20, "2024-03-15")

	eng, err := New(ctx, db.Storage, testutil.TestUser, Options{})
	require.NoError(t, err)

	result, err := eng.Process(ctx, txn)
	require.NoError(t, err)
	assert.Len(t, result.MatchedIDs, 2)
	assert.Equal(t, "Grocery Store", txn.Vendor)
	// The lower priority rule still decides fields nobody claimed.
	assert.Equal(t, "generic", txn.Reference)
}

func TestProcess_StopProcessing(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	stopper := &model.Rule{
		UserID:   testutil.TestUser,
		Name:     "stop here",
		Priority: 100,
		IsActive: true,
		Criteria: model.CriteriaTree{
			Version: model.CriteriaFormatVersion,
			Root:    cond(model.FieldDescription, model.MatchContains, "grocery"),
		},
		Actions: model.ActionSet{
			Version:        model.ActionsFormatVersion,
			StopProcessing: true,
			Actions: []model.Action{
				{Type: model.ActionSetVendor, Value: "Grocery Store"},
			},
		},
	}
	require.NoError(t, db.Storage.CreateRule(ctx, stopper))

	db.SeedRule(testutil.TestUser, "never reached", 1,
		cond(model.FieldDescription, model.MatchContains, "store"),
		model.Action{Type: model.ActionSetReference, Value: "late"})

	txn := db.SeedTransaction(testutil.TestUser, "GROCERY STORE #9", -20, "2024-03-15")

	eng, err := New(ctx, db.Storage, testutil.TestUser, Options{})
	require.NoError(t, err)

	result, err := eng.Process(ctx, txn)
	require.NoError(t, err)
	// Both rules matched, but the second one never ran.
	assert.Len(t, result.MatchedIDs, 2)
	assert.Equal(t, "Grocery Store", txn.Vendor)
	assert.Empty(t, txn.Reference)
}

func TestProcessBatch(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	db.SeedRule(testutil.TestUser, "coffee", 10,
		cond(model.FieldDescription, model.MatchContains, "coffee"),
		model.Action{Type: model.ActionSetVendor, Value: "Coffee Shop"})

	txns := []model.Transaction{
		*db.SeedTransaction(testutil.TestUser, "COFFEE SHOP A", -4, "2024-03-01"),
		*db.SeedTransaction(testutil.TestUser, "HARDWARE STORE", -30, "2024-03-02"),
		*db.SeedTransaction(testutil.TestUser, "COFFEE SHOP B", -5, "2024-03-03"),
	}

	eng, err := New(ctx, db.Storage, testutil.TestUser, Options{})
	require.NoError(t, err)

	var ticks []int
	results, err := eng.ProcessBatch(ctx, txns, func(done, total int) {
		ticks = append(ticks, done)
		assert.Equal(t, 3, total)
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{1, 2, 3}, ticks)

	assert.Len(t, results[0].Changes, 1)
	assert.Empty(t, results[1].Changes)
	assert.Len(t, results[2].Changes, 1)
}

func TestProcessBatch_ContextCancelled(t *testing.T) {
	db := testutil.SetupTestDB(t)

	txns := []model.Transaction{
		*db.SeedTransaction(testutil.TestUser, "A", -1, "2024-03-01"),
		*db.SeedTransaction(testutil.TestUser, "B", -2, "2024-03-02"),
	}

	eng, err := New(context.Background(), db.Storage, testutil.TestUser, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := eng.ProcessBatch(ctx, txns, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	eng, err := New(ctx, db.Storage, testutil.TestUser, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, eng.RuleCount())

	db.SeedRule(testutil.TestUser, "new rule", 10,
		cond(model.FieldDescription, model.MatchContains, "x"),
		model.Action{Type: model.ActionSetVendor, Value: "X"})

	require.NoError(t, eng.Refresh(ctx))
	assert.Equal(t, 1, eng.RuleCount())
}

func TestNewTransaction(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	txn := NewTransaction(testutil.TestUser, "COFFEE", -4.50, date)

	assert.NotEmpty(t, txn.ID)
	assert.NotEmpty(t, txn.Hash)
	assert.Equal(t, txn.GenerateHash(), txn.Hash)

	other := NewTransaction(testutil.TestUser, "COFFEE", -4.50, date)
	assert.NotEqual(t, txn.ID, other.ID)
	assert.Equal(t, txn.Hash, other.Hash)
}
