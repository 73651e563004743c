package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/budgetwise/ruleflow/internal/cli"
	"github.com/budgetwise/ruleflow/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage import rules",
		Long:  `Create, inspect, validate, and toggle the rules applied during transaction import.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesEnableCmd())
	cmd.AddCommand(rulesDisableCmd())
	cmd.AddCommand(rulesValidateCmd())
	cmd.AddCommand(rulesTestCmd())
	cmd.AddCommand(rulesExportCmd())
	cmd.AddCommand(rulesImportCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all rules",
		Long: `Display all rules in evaluation order.

Rules are sorted the way the engine runs them: priority descending,
then creation time ascending.`,
		RunE: runRulesList,
	}
}

func runRulesList(cmd *cobra.Command, _ []string) error {
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

	rules, err := storage.GetAllRules(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get rules: %w", err)
	}

	if len(rules) == 0 {
		fmt.Println(cli.InfoStyle.Render("No rules found. Use 'ruleflow rules add' to create one.")) //nolint:forbidigo // User-facing output
		return nil
	}

	fmt.Println(cli.FormatTitle("Import Rules")) //nolint:forbidigo // User-facing output
	fmt.Println()                                //nolint:forbidigo // User-facing output

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() {
		if flushErr := w.Flush(); flushErr != nil {
			slog.Error("failed to flush table writer", "error", flushErr)
		}
	}()

	if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		cli.HeaderStyle.Render("ID"),
		cli.HeaderStyle.Render("Name"),
		cli.HeaderStyle.Render("Priority"),
		cli.HeaderStyle.Render("Actions"),
		cli.HeaderStyle.Render("Stop"),
		cli.HeaderStyle.Render("Active"),
	); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := range rules {
		rule := &rules[i]

		active := cli.SuccessStyle.Render("yes")
		if !rule.IsActive {
			active = cli.SubtleStyle.Render("no")
		}
		stop := ""
		if rule.StopProcessing() {
			stop = "stop"
		}

		if _, err := fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%s\n",
			rule.ID, rule.Name, rule.Priority, len(rule.Actions.Actions), stop, active,
		); err != nil {
			return fmt.Errorf("failed to write rule row: %w", err)
		}
	}

	return nil
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Show one rule in its YAML authoring form",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesShow,
	}
}

func runRulesShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	userID, err := requireUser()
	if err != nil {
		return err
	}
	id, err := parseRuleID(args[0])
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

	return writeRulesYAML(os.Stdout, []*model.Rule{rule})
}

func rulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuleToggle(cmd, args[0], func(ctx ruleToggleContext) error {
				if err := ctx.storage.DeleteRule(ctx.ctx, ctx.id, ctx.userID); err != nil {
					return fmt.Errorf("failed to delete rule: %w", err)
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted rule %d", ctx.id))) //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}
}

func rulesEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <rule-id>",
		Short: "Enable a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuleToggle(cmd, args[0], func(ctx ruleToggleContext) error {
				if err := ctx.storage.SetRuleActive(ctx.ctx, ctx.id, ctx.userID, true); err != nil {
					return fmt.Errorf("failed to enable rule: %w", err)
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Enabled rule %d", ctx.id))) //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}
}

func rulesDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <rule-id>",
		Short: "Disable a rule without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuleToggle(cmd, args[0], func(ctx ruleToggleContext) error {
				if err := ctx.storage.SetRuleActive(ctx.ctx, ctx.id, ctx.userID, false); err != nil {
					return fmt.Errorf("failed to disable rule: %w", err)
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Disabled rule %d", ctx.id))) //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}
}
