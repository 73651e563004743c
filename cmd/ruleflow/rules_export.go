package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/budgetwise/ruleflow/internal/cli"
	"github.com/budgetwise/ruleflow/internal/model"
)

func rulesExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export rules as a YAML file",
		Long: `Write all rules in the YAML authoring format to stdout or a file.

The output round-trips through 'rules import', so exporting is also how
rules move between databases or users.`,
		RunE: runRulesExport,
	}

	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	return cmd
}

func runRulesExport(cmd *cobra.Command, _ []string) error {
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

	stored, err := storage.GetAllRules(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get rules: %w", err)
	}
	if len(stored) == 0 {
		fmt.Println(cli.InfoStyle.Render("No rules to export.")) //nolint:forbidigo // User-facing output
		return nil
	}

	rules := make([]*model.Rule, 0, len(stored))
	for i := range stored {
		rules = append(rules, &stored[i])
	}

	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if path == "" {
		return writeRulesYAML(os.Stdout, rules)
	}

	f, err := os.Create(path) //nolint:gosec // User-supplied output path
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Error("failed to close output file", "error", closeErr)
		}
	}()

	if err := writeRulesYAML(f, rules); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Exported %d rules to %s", len(rules), path))) //nolint:forbidigo // User-facing output
	return nil
}
