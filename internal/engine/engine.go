// Package engine orchestrates rule matching and application during
// transaction import.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/budgetwise/ruleflow/internal/criteria"
	"github.com/budgetwise/ruleflow/internal/model"
	"github.com/budgetwise/ruleflow/internal/ruleapply"
	"github.com/budgetwise/ruleflow/internal/service"
)

// Options configures a rule engine.
type Options struct {
	// DryRun evaluates and applies rules in memory without persisting
	// transaction updates or tag writes.
	DryRun bool
}

// RuleEngine evaluates a user's active rules against transactions and
// applies the matches. Transactions are processed one at a time; every
// apply call gets its own conflict-resolution scope, so an engine may
// be reused across a whole import batch.
type RuleEngine struct {
	storage    service.Storage
	evaluator  *criteria.Evaluator
	applicator *ruleapply.Applicator
	userID     string
	rules      []model.Rule
	opts       Options
}

// Result pairs a transaction with the outcome of one rule pass.
type Result struct {
	Transaction *model.Transaction
	Changes     model.ChangeSet
	MatchedIDs  []int64
}

// New creates a rule engine for one user, loading their active rules in
// evaluation order (priority descending, then creation time).
func New(ctx context.Context, storage service.Storage, userID string, opts Options) (*RuleEngine, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var tagSink ruleapply.TagService = storage
	if opts.DryRun {
		tagSink = noopTagService{}
	}

	applicator, err := ruleapply.NewApplicator(storage, storage, tagSink)
	if err != nil {
		return nil, err
	}

	engine := &RuleEngine{
		storage:    storage,
		evaluator:  criteria.NewEvaluator(),
		applicator: applicator,
		userID:     userID,
		opts:       opts,
	}
	if err := engine.Refresh(ctx); err != nil {
		return nil, err
	}
	return engine, nil
}

// Refresh reloads the user's active rules from storage.
func (e *RuleEngine) Refresh(ctx context.Context) error {
	rules, err := e.storage.GetActiveRules(ctx, e.userID)
	if err != nil {
		return fmt.Errorf("failed to load active rules: %w", err)
	}
	e.rules = rules

	slog.Debug("loaded active rules", "user_id", e.userID, "count", len(rules))
	return nil
}

// RuleCount returns the number of active rules loaded.
func (e *RuleEngine) RuleCount() int {
	return len(e.rules)
}

// Process runs one transaction through the rule pass: collect matching
// rules in evaluation order, apply them, and (unless dry-run) persist
// the mutated transaction. The returned error only reflects persistence
// failures; rule-data problems never fail a transaction.
func (e *RuleEngine) Process(ctx context.Context, txn *model.Transaction) (Result, error) {
	matched := e.matchRules(*txn)

	matchedIDs := make([]int64, 0, len(matched))
	for i := range matched {
		matchedIDs = append(matchedIDs, matched[i].ID)
	}

	changes := e.applicator.ApplyRules(ctx, txn, matched, e.userID)

	if len(changes) > 0 {
		slog.Info("rules applied to transaction",
			"transaction_id", txn.ID,
			"matched_rules", matchedIDs,
			"changed_fields", len(changes))
	}

	if !e.opts.DryRun && len(changes) > 0 {
		if err := e.storage.UpdateTransaction(ctx, txn); err != nil {
			return Result{}, fmt.Errorf("failed to persist transaction %s: %w", txn.ID, err)
		}
	}

	return Result{Transaction: txn, Changes: changes, MatchedIDs: matchedIDs}, nil
}

// ProcessBatch runs transactions through the rule pass sequentially.
// The optional progress callback fires after each transaction.
func (e *RuleEngine) ProcessBatch(ctx context.Context, txns []model.Transaction, progress func(done, total int)) ([]Result, error) {
	results := make([]Result, 0, len(txns))
	for i := range txns {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		result, err := e.Process(ctx, &txns[i])
		if err != nil {
			return results, err
		}
		results = append(results, result)

		if progress != nil {
			progress(i+1, len(txns))
		}
	}
	return results, nil
}

// matchRules returns the active rules whose criteria match the
// transaction, preserving the loaded evaluation order.
func (e *RuleEngine) matchRules(txn model.Transaction) []model.Rule {
	var matched []model.Rule
	for i := range e.rules {
		if e.evaluator.Evaluate(e.rules[i].Criteria, txn) {
			matched = append(matched, e.rules[i])
		}
	}
	return matched
}

// NewTransaction constructs an imported transaction with a fresh id and
// duplicate-detection hash.
func NewTransaction(userID, description string, amount float64, date time.Time) model.Transaction {
	txn := model.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Description: description,
		Amount:      amount,
		Date:        date,
	}
	txn.Hash = txn.GenerateHash()
	return txn
}

// noopTagService discards tag writes during dry runs.
type noopTagService struct{}

func (noopTagService) SetTransactionTags(_ context.Context, _ string, _ []int64) error {
	return nil
}
