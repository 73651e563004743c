package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/budgetwise/ruleflow/internal/common"
	"github.com/budgetwise/ruleflow/internal/model"
)

// CreateRule persists a new import rule. The rule's criteria and
// actions are stored as their canonical v2 JSON documents.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	criteriaJSON, err := model.EncodeCriteria(rule.Criteria)
	if err != nil {
		return fmt.Errorf("failed to encode rule criteria: %w", err)
	}
	actionsJSON, err := model.EncodeActions(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode rule actions: %w", err)
	}

	query := `
		INSERT INTO rules (
			user_id, name, priority, is_active,
			criteria, criteria_version, actions, actions_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		rule.UserID, rule.Name, rule.Priority, rule.IsActive,
		string(criteriaJSON), model.CriteriaFormatVersion,
		string(actionsJSON), model.ActionsFormatVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = id
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	return nil
}

// GetRule retrieves one rule by id with an ownership check.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int64, userID string) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, priority, is_active,
		       criteria, criteria_version, actions, actions_version,
		       created_at, updated_at
		FROM rules
		WHERE id = ? AND user_id = ?
	`, id, userID)

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
		}
		return nil, err
	}
	return rule, nil
}

// GetActiveRules returns the user's active rules in evaluation order:
// priority descending, then creation time ascending. Rules whose stored
// criteria or actions fail to decode are skipped with a logged
// diagnostic rather than failing the load; one corrupt rule must not
// block the rest.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context, userID string) ([]model.Rule, error) {
	return s.queryRules(ctx, userID, true)
}

// GetAllRules returns every rule owned by the user, active or not, in
// evaluation order.
func (s *SQLiteStorage) GetAllRules(ctx context.Context, userID string) ([]model.Rule, error) {
	return s.queryRules(ctx, userID, false)
}

func (s *SQLiteStorage) queryRules(ctx context.Context, userID string, activeOnly bool) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, name, priority, is_active,
		       criteria, criteria_version, actions, actions_version,
		       created_at, updated_at
		FROM rules
		WHERE user_id = ?
	`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY priority DESC, created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			if errors.Is(err, errUndecodableRule) {
				continue
			}
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return rules, nil
}

// UpdateRule rewrites an existing rule's definition.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	criteriaJSON, err := model.EncodeCriteria(rule.Criteria)
	if err != nil {
		return fmt.Errorf("failed to encode rule criteria: %w", err)
	}
	actionsJSON, err := model.EncodeActions(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode rule actions: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rules
		SET name = ?, priority = ?, is_active = ?,
		    criteria = ?, criteria_version = ?,
		    actions = ?, actions_version = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?
	`,
		rule.Name, rule.Priority, rule.IsActive,
		string(criteriaJSON), model.CriteriaFormatVersion,
		string(actionsJSON), model.ActionsFormatVersion,
		rule.ID, rule.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", rule.ID, common.ErrNotFound)
	}

	rule.UpdatedAt = time.Now()
	return nil
}

// DeleteRule removes a rule with an ownership check.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int64, userID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM rules WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// SetRuleActive toggles a rule without rewriting its definition.
func (s *SQLiteStorage) SetRuleActive(ctx context.Context, id int64, userID string, active bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rules SET is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?
	`, active, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// errUndecodableRule marks rows whose stored JSON no longer decodes.
var errUndecodableRule = errors.New("undecodable rule")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*model.Rule, error) {
	var (
		rule            model.Rule
		criteriaJSON    string
		criteriaVersion int
		actionsJSON     string
		actionsVersion  int
	)

	err := row.Scan(
		&rule.ID, &rule.UserID, &rule.Name, &rule.Priority, &rule.IsActive,
		&criteriaJSON, &criteriaVersion, &actionsJSON, &actionsVersion,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	rule.Criteria, err = model.DecodeCriteria([]byte(criteriaJSON), criteriaVersion)
	if err != nil {
		slog.Error("skipping rule with undecodable criteria",
			"rule_id", rule.ID,
			"user_id", rule.UserID,
			"error", err)
		return nil, errUndecodableRule
	}

	rule.Actions, err = model.DecodeActions([]byte(actionsJSON), actionsVersion)
	if err != nil {
		slog.Error("skipping rule with undecodable actions",
			"rule_id", rule.ID,
			"user_id", rule.UserID,
			"error", err)
		return nil, errUndecodableRule
	}

	return &rule, nil
}
