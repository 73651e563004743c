package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/budgetwise/ruleflow/internal/common"
	"github.com/budgetwise/ruleflow/internal/model"
	"github.com/budgetwise/ruleflow/internal/service"
)

// SaveTransactions stores a batch of imported transactions. Hashes are
// generated when absent; duplicate hashes are ignored so re-importing
// the same file is safe.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, user_id, hash, date, description, vendor, notes,
			reference, type, amount, category_id, account_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range transactions {
		txn := &transactions[i]
		if err := validateTransaction(txn); err != nil {
			return err
		}
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}

		if _, err := stmt.ExecContext(ctx,
			txn.ID, txn.UserID, txn.Hash, txn.Date, txn.Description,
			txn.Vendor, txn.Notes, txn.Reference, txn.Type, txn.Amount,
			txn.CategoryID, txn.AccountID,
		); err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transactions: %w", err)
	}
	return nil
}

// GetTransactions returns the user's transactions, newest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, hash, date, description, vendor, notes,
		       reference, type, amount, category_id, account_id
		FROM transactions
		WHERE user_id = ?
	`
	args := []any{userID}

	if filter.StartDate != nil {
		query += ` AND date >= ?`
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += ` AND date <= ?`
		args = append(args, *filter.EndDate)
	}
	query += ` ORDER BY date DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	// Attach tags
	for i := range txns {
		tags, err := s.GetTransactionTags(ctx, txns[i].ID)
		if err != nil {
			return nil, err
		}
		txns[i].Tags = tags
	}

	return txns, nil
}

// GetTransactionByID retrieves one transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, hash, date, description, vendor, notes,
		       reference, type, amount, category_id, account_id
		FROM transactions
		WHERE id = ?
	`, id)

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
		}
		return nil, err
	}

	tags, err := s.GetTransactionTags(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	txn.Tags = tags

	return txn, nil
}

// UpdateTransaction persists the mutable fields a rule apply pass may
// have changed. Tags are persisted separately through the tag service.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET vendor = ?, notes = ?, reference = ?, type = ?,
		    category_id = ?, account_id = ?
		WHERE id = ? AND user_id = ?
	`,
		txn.Vendor, txn.Notes, txn.Reference, txn.Type,
		txn.CategoryID, txn.AccountID,
		txn.ID, txn.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", txn.ID, common.ErrNotFound)
	}
	return nil
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	err := row.Scan(
		&txn.ID, &txn.UserID, &txn.Hash, &txn.Date, &txn.Description,
		&txn.Vendor, &txn.Notes, &txn.Reference, &txn.Type, &txn.Amount,
		&txn.CategoryID, &txn.AccountID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &txn, nil
}
