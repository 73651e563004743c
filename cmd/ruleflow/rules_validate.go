package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/budgetwise/ruleflow/internal/cli"
	"github.com/budgetwise/ruleflow/internal/model"
)

func rulesValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored rules or a rules file",
		Long: `Check rules for structural problems: unknown fields, invalid match
types, broken regex patterns, dangling category or account references,
and malformed action values.

By default every stored rule is checked. With --file, the YAML file is
validated instead without storing anything.`,
		RunE: runRulesValidate,
	}

	cmd.Flags().StringP("file", "f", "", "validate a YAML rules file instead of stored rules")

	return cmd
}

func runRulesValidate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	userID, err := requireUser()
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

	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}

	var rules []*ruleToCheck
	if path != "" {
		loaded, loadErr := loadRulesFile(path, userID)
		if loadErr != nil {
			return loadErr
		}
		for _, rule := range loaded {
			rules = append(rules, &ruleToCheck{name: rule.Name, rule: rule})
		}
	} else {
		stored, listErr := storage.GetAllRules(ctx, userID)
		if listErr != nil {
			return fmt.Errorf("failed to get rules: %w", listErr)
		}
		for i := range stored {
			rule := &stored[i]
			rules = append(rules, &ruleToCheck{
				name: fmt.Sprintf("%d (%s)", rule.ID, rule.Name),
				rule: rule,
			})
		}
	}

	if len(rules) == 0 {
		fmt.Println(cli.InfoStyle.Render("No rules to validate.")) //nolint:forbidigo // User-facing output
		return nil
	}

	invalid := 0
	for _, check := range rules {
		result := validateRule(ctx, storage, check.rule)
		if result.Valid {
			fmt.Println(cli.FormatSuccess("Rule " + check.name + " is valid")) //nolint:forbidigo // User-facing output
			continue
		}
		invalid++
		printValidationErrors(check.name, result)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d rules failed validation", invalid, len(rules))
	}
	return nil
}

type ruleToCheck struct {
	rule *model.Rule
	name string
}
