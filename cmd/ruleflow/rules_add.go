package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/budgetwise/ruleflow/internal/cli"
	"github.com/budgetwise/ruleflow/internal/criteria"
	"github.com/budgetwise/ruleflow/internal/model"
	"github.com/budgetwise/ruleflow/internal/ruleapply"
	"github.com/budgetwise/ruleflow/internal/service"
)

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add rules from a YAML file",
		Long: `Read rule definitions from a YAML file, validate them, and store them.

The file holds a 'rules' list; each entry has a name, priority, and the
criteria and actions documents. Invalid rules abort the whole command
so a typo never half-imports a file.`,
		RunE: runRulesAdd,
	}

	cmd.Flags().StringP("file", "f", "", "YAML file with rule definitions (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runRulesAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	userID, err := requireUser()
	if err != nil {
		return err
	}

	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}

	rules, err := loadRulesFile(path, userID)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return fmt.Errorf("no rules found in %s", path)
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

	// Validate everything before storing anything.
	invalid := 0
	for _, rule := range rules {
		result := validateRule(ctx, storage, rule)
		if !result.Valid {
			invalid++
			printValidationErrors(rule.Name, result)
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d rules failed validation", invalid, len(rules))
	}

	for _, rule := range rules {
		if err := storage.CreateRule(ctx, rule); err != nil {
			return fmt.Errorf("failed to store rule %q: %w", rule.Name, err)
		}
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added rule %d: %s", rule.ID, rule.Name))) //nolint:forbidigo // User-facing output
	}

	return nil
}

// loadRulesFile parses a YAML authoring file into model rules.
func loadRulesFile(path, userID string) ([]*model.Rule, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-supplied rules file
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	rules := make([]*model.Rule, 0, len(file.Rules))
	for _, doc := range file.Rules {
		rule, err := docToRule(doc, userID)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// validateRule runs both halves of rule validation: the criteria tree
// structurally, and the actions against the user's stored references.
func validateRule(ctx context.Context, storage service.Storage, rule *model.Rule) model.ValidationResult {
	result := criteria.NewEvaluator().Validate(rule.Criteria)

	applicator, err := ruleapply.NewApplicator(storage, storage, storage)
	if err != nil {
		result.AddError(err.Error())
		return result
	}

	actionResult := applicator.ValidateActions(ctx, rule.Actions, rule.UserID)
	for _, msg := range actionResult.Errors {
		result.AddError(msg)
	}
	result.Valid = result.Valid && actionResult.Valid
	return result
}

func printValidationErrors(name string, result model.ValidationResult) {
	fmt.Println(cli.FormatError(fmt.Sprintf("Rule %q is invalid:", name))) //nolint:forbidigo // User-facing output
	for _, msg := range result.Errors {
		fmt.Println(cli.ErrorStyle.Render("  - " + msg)) //nolint:forbidigo // User-facing output
	}
}
