package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/budgetwise/ruleflow/internal/cli"
	"github.com/budgetwise/ruleflow/internal/criteria"
	"github.com/budgetwise/ruleflow/internal/engine"
	"github.com/budgetwise/ruleflow/internal/model"
	"github.com/budgetwise/ruleflow/internal/ruleapply"
)

func rulesTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <rule-id>",
		Short: "Test a rule against a sample transaction",
		Long: `Evaluate one stored rule against a transaction described on the
command line, then show whether it matches and what it would change.

Nothing is persisted; tag actions are applied in memory only.`,
		Args: cobra.ExactArgs(1),
		RunE: runRulesTest,
	}

	cmd.Flags().String("description", "", "transaction description")
	cmd.Flags().String("vendor", "", "transaction vendor")
	cmd.Flags().String("reference", "", "transaction reference")
	cmd.Flags().String("notes", "", "transaction notes")
	cmd.Flags().Float64("amount", 0, "transaction amount")
	cmd.Flags().String("date", "", "transaction date (YYYY-MM-DD, default today)")

	return cmd
}

func runRulesTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	userID, err := requireUser()
	if err != nil {
		return err
	}
	id, err := parseRuleID(args[0])
	if err != nil {
		return err
	}

	txn, err := transactionFromFlags(cmd, userID)
	if err != nil {
		return err
	}

	storage, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if closeErr := storage.Close(); closeErr != nil {
			slog.Error("failed to close storage", "error", closeErr)
		}
	}()

	rule, err := storage.GetRule(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("failed to get rule: %w", err)
	}

	evaluator := criteria.NewEvaluator()
	if !evaluator.Evaluate(rule.Criteria, txn) {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Rule %q does not match this transaction.", rule.Name))) //nolint:forbidigo // User-facing output
		return nil
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Rule %q matches.", rule.Name))) //nolint:forbidigo // User-facing output

	// Tag writes go nowhere during a test run.
	applicator, err := ruleapply.NewApplicator(storage, storage, discardTags{})
	if err != nil {
		return err
	}

	changes := applicator.ApplyRules(ctx, &txn, []model.Rule{*rule}, userID)
	if len(changes) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No fields would change.")) //nolint:forbidigo // User-facing output
		return nil
	}

	fmt.Println()                                         //nolint:forbidigo // User-facing output
	fmt.Println(cli.BoldStyle.Render("It would change:")) //nolint:forbidigo // User-facing output
	for _, field := range sortedChangeFields(changes) {
		change := changes[field]
		fmt.Printf("  %s: %v → %v\n", field, change.Old, change.New) //nolint:forbidigo // User-facing output
	}

	return nil
}

// transactionFromFlags builds the ad-hoc transaction a rule is tested
// against.
func transactionFromFlags(cmd *cobra.Command, userID string) (model.Transaction, error) {
	description, _ := cmd.Flags().GetString("description")
	vendor, _ := cmd.Flags().GetString("vendor")
	reference, _ := cmd.Flags().GetString("reference")
	notes, _ := cmd.Flags().GetString("notes")
	amount, _ := cmd.Flags().GetFloat64("amount")
	dateArg, _ := cmd.Flags().GetString("date")

	date := time.Now()
	if dateArg != "" {
		parsed, err := time.Parse("2006-01-02", dateArg)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("invalid date %q: %w", dateArg, err)
		}
		date = parsed
	}

	txn := engine.NewTransaction(userID, description, amount, date)
	txn.Vendor = vendor
	txn.Reference = reference
	txn.Notes = notes
	return txn, nil
}

func sortedChangeFields(changes model.ChangeSet) []string {
	fields := make([]string, 0, len(changes))
	for field := range changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// discardTags drops tag writes during rule tests.
type discardTags struct{}

func (discardTags) SetTransactionTags(_ context.Context, _ string, _ []int64) error {
	return nil
}
