package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetwise/ruleflow/internal/common"
	"github.com/budgetwise/ruleflow/internal/model"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRule(userID, name string, priority int) *model.Rule {
	return &model.Rule{
		UserID:   userID,
		Name:     name,
		Priority: priority,
		IsActive: true,
		Criteria: model.CriteriaTree{
			Version: model.CriteriaFormatVersion,
			Root: model.Group{
				Operator: model.GroupAnd,
				Conditions: []model.Node{
					model.Condition{Field: model.FieldVendor, Match: model.MatchContains, Pattern: "amazon"},
				},
			},
		},
		Actions: model.ActionSet{
			Version:        model.ActionsFormatVersion,
			StopProcessing: true,
			Actions: []model.Action{
				{Type: model.ActionSetVendor, Value: "Amazon", Behavior: model.BehaviorAlways},
			},
		},
	}
}

func TestRuleCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	rule := sampleRule("user-1", "Amazon cleanup", 10)
	require.NoError(t, s.CreateRule(ctx, rule))
	assert.NotZero(t, rule.ID)

	loaded, err := s.GetRule(ctx, rule.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Amazon cleanup", loaded.Name)
	assert.Equal(t, 10, loaded.Priority)
	assert.True(t, loaded.IsActive)
	assert.Equal(t, rule.Criteria.Root, loaded.Criteria.Root)
	require.Len(t, loaded.Actions.Actions, 1)
	assert.Equal(t, model.ActionSetVendor, loaded.Actions.Actions[0].Type)
	assert.True(t, loaded.StopProcessing())

	loaded.Name = "Amazon rename"
	loaded.Priority = 20
	require.NoError(t, s.UpdateRule(ctx, loaded))

	reloaded, err := s.GetRule(ctx, rule.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Amazon rename", reloaded.Name)
	assert.Equal(t, 20, reloaded.Priority)

	require.NoError(t, s.DeleteRule(ctx, rule.ID, "user-1"))
	_, err = s.GetRule(ctx, rule.ID, "user-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRuleOwnership(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	rule := sampleRule("user-1", "Mine", 0)
	require.NoError(t, s.CreateRule(ctx, rule))

	_, err := s.GetRule(ctx, rule.ID, "user-2")
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = s.DeleteRule(ctx, rule.ID, "user-2")
	assert.ErrorIs(t, err, common.ErrNotFound)

	rules, err := s.GetAllRules(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestGetActiveRules_Ordering(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	low := sampleRule("user-1", "low", 1)
	high := sampleRule("user-1", "high", 100)
	mid := sampleRule("user-1", "mid", 50)
	inactive := sampleRule("user-1", "inactive", 200)
	inactive.IsActive = false

	for _, r := range []*model.Rule{low, high, mid, inactive} {
		require.NoError(t, s.CreateRule(ctx, r))
	}

	rules, err := s.GetActiveRules(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "high", rules[0].Name)
	assert.Equal(t, "mid", rules[1].Name)
	assert.Equal(t, "low", rules[2].Name)
}

func TestSetRuleActive(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	rule := sampleRule("user-1", "toggle", 0)
	require.NoError(t, s.CreateRule(ctx, rule))

	require.NoError(t, s.SetRuleActive(ctx, rule.ID, "user-1", false))
	active, err := s.GetActiveRules(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, s.SetRuleActive(ctx, rule.ID, "user-1", true))
	active, err = s.GetActiveRules(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestGetActiveRules_SkipsUndecodableRules(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	good := sampleRule("user-1", "good", 0)
	require.NoError(t, s.CreateRule(ctx, good))

	// Corrupt a stored document directly; the loader must skip it
	// rather than fail the whole query.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rules (user_id, name, priority, is_active, criteria, criteria_version, actions, actions_version)
		VALUES ('user-1', 'corrupt', 500, 1, '{broken', 2, '{}', 2)
	`)
	require.NoError(t, err)

	rules, err := s.GetActiveRules(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "good", rules[0].Name)
}

func TestCreateRule_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	t.Run("missing name", func(t *testing.T) {
		rule := sampleRule("user-1", "", 0)
		assert.ErrorIs(t, s.CreateRule(ctx, rule), ErrInvalidRule)
	})

	t.Run("missing criteria", func(t *testing.T) {
		rule := sampleRule("user-1", "no criteria", 0)
		rule.Criteria = model.CriteriaTree{}
		assert.ErrorIs(t, s.CreateRule(ctx, rule), ErrInvalidRule)
	})

	t.Run("no actions", func(t *testing.T) {
		rule := sampleRule("user-1", "no actions", 0)
		rule.Actions.Actions = nil
		assert.ErrorIs(t, s.CreateRule(ctx, rule), ErrInvalidRule)
	})

	t.Run("nil rule", func(t *testing.T) {
		assert.Error(t, s.CreateRule(ctx, nil))
	})
}
