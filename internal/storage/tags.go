package storage

import (
	"context"
	"fmt"

	"github.com/budgetwise/ruleflow/internal/model"
)

// CreateTag creates a new tag for the user.
func (s *SQLiteStorage) CreateTag(ctx context.Context, userID, name string) (*model.Tag, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (user_id, name) VALUES (?, ?)`, userID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get tag ID: %w", err)
	}

	return &model.Tag{ID: id, UserID: userID, Name: name}, nil
}

// GetTags returns all tags for the user.
func (s *SQLiteStorage) GetTags(ctx context.Context, userID string) ([]model.Tag, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at
		FROM tags
		WHERE user_id = ?
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tags []model.Tag
	for rows.Next() {
		var tag model.Tag
		if err := rows.Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	return tags, nil
}

// SetTransactionTags replaces the tag set attached to a transaction.
// The whole replacement runs in one database transaction so a partial
// write never survives.
func (s *SQLiteStorage) SetTransactionTags(ctx context.Context, transactionID string, tagIDs []int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transaction_tags WHERE transaction_id = ?`, transactionID); err != nil {
		return fmt.Errorf("failed to clear transaction tags: %w", err)
	}

	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)`,
			transactionID, tagID); err != nil {
			return fmt.Errorf("failed to attach tag %d: %w", tagID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction tags: %w", err)
	}
	return nil
}

// GetTransactionTags returns the tag ids attached to a transaction.
func (s *SQLiteStorage) GetTransactionTags(ctx context.Context, transactionID string) ([]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tag_id FROM transaction_tags
		WHERE transaction_id = ?
		ORDER BY tag_id
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tag id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction tags: %w", err)
	}

	return ids, nil
}
