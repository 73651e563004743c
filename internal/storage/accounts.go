package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/budgetwise/ruleflow/internal/common"
	"github.com/budgetwise/ruleflow/internal/model"
)

// CreateAccount creates a new account for the user.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, userID, name, institution string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, name, institution) VALUES (?, ?, ?)
	`, userID, name, institution)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get account ID: %w", err)
	}

	return &model.Account{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Institution: institution,
		IsActive:    true,
	}, nil
}

// FindAccount resolves an account id with an ownership check; missing,
// foreign, and inactive ids all resolve to common.ErrNotFound.
func (s *SQLiteStorage) FindAccount(ctx context.Context, id int64, userID string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	var acct model.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, institution, is_active, created_at
		FROM accounts
		WHERE id = ? AND user_id = ? AND is_active = 1
	`, id, userID).Scan(&acct.ID, &acct.UserID, &acct.Name, &acct.Institution, &acct.IsActive, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	return &acct, nil
}

// GetAccounts returns all active accounts for the user.
func (s *SQLiteStorage) GetAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, institution, is_active, created_at
		FROM accounts
		WHERE user_id = ? AND is_active = 1
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accts []model.Account
	for rows.Next() {
		var acct model.Account
		if err := rows.Scan(&acct.ID, &acct.UserID, &acct.Name, &acct.Institution, &acct.IsActive, &acct.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accts = append(accts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accts, nil
}
