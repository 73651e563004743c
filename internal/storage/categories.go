package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/budgetwise/ruleflow/internal/common"
	"github.com/budgetwise/ruleflow/internal/model"
)

// CreateCategory creates a new category for the user.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, userID, name string, categoryType model.CategoryType) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	if categoryType != model.CategoryTypeIncome && categoryType != model.CategoryTypeExpense {
		return nil, fmt.Errorf("invalid category type %q", categoryType)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (user_id, name, type) VALUES (?, ?, ?)
	`, userID, name, string(categoryType))
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category ID: %w", err)
	}

	return &model.Category{
		ID:       id,
		UserID:   userID,
		Name:     name,
		Type:     categoryType,
		IsActive: true,
	}, nil
}

// FindCategory resolves a category id with an ownership check. Ids that
// do not exist, belong to another user, or are inactive all resolve to
// common.ErrNotFound; callers cannot distinguish foreign ids from
// missing ones.
func (s *SQLiteStorage) FindCategory(ctx context.Context, id int64, userID string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	var cat model.Category
	var catType string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, type, is_active, created_at
		FROM categories
		WHERE id = ? AND user_id = ? AND is_active = 1
	`, id, userID).Scan(&cat.ID, &cat.UserID, &cat.Name, &catType, &cat.IsActive, &cat.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("category %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find category: %w", err)
	}

	cat.Type = model.CategoryType(catType)
	return &cat, nil
}

// GetCategories returns all active categories for the user.
func (s *SQLiteStorage) GetCategories(ctx context.Context, userID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, type, is_active, created_at
		FROM categories
		WHERE user_id = ? AND is_active = 1
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cats []model.Category
	for rows.Next() {
		var cat model.Category
		var catType string
		if err := rows.Scan(&cat.ID, &cat.UserID, &cat.Name, &catType, &cat.IsActive, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cat.Type = model.CategoryType(catType)
		cats = append(cats, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	return cats, nil
}
