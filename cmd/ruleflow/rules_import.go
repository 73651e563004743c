package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/budgetwise/ruleflow/internal/cli"
)

func rulesImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import rules from a YAML export",
		Long: `Read a YAML rules file and store every rule in it.

Unlike 'rules add', invalid rules are reported and skipped rather than
aborting the whole file, so a large export with one stale category
reference still imports the rest.`,
		RunE: runRulesImport,
	}

	cmd.Flags().StringP("file", "f", "", "YAML file with rule definitions (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runRulesImport(cmd *cobra.Command, _ []string) error {
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

	imported := 0
	skipped := 0
	for _, rule := range rules {
		result := validateRule(ctx, storage, rule)
		if !result.Valid {
			skipped++
			printValidationErrors(rule.Name, result)
			continue
		}

		if err := storage.CreateRule(ctx, rule); err != nil {
			return fmt.Errorf("failed to store rule %q: %w", rule.Name, err)
		}
		imported++
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d of %d rules", imported, len(rules)))) //nolint:forbidigo // User-facing output
	if skipped > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("Skipped %d invalid rules", skipped))) //nolint:forbidigo // User-facing output
	}
	return nil
}
