package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/budgetwise/ruleflow/internal/cli"
	"github.com/budgetwise/ruleflow/internal/engine"
	"github.com/budgetwise/ruleflow/internal/service"
)

func applyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run active rules over stored transactions",
		Long: `Evaluate every active rule against the user's stored transactions
and apply the matches.

By default this is a dry run: changes are computed and summarized but
nothing is written. Pass --commit to persist them.`,
		RunE: runApply,
	}

	cmd.Flags().Bool("commit", false, "persist changes instead of the default dry run")
	cmd.Flags().String("from", "", "only process transactions on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "only process transactions on or before this date (YYYY-MM-DD)")
	cmd.Flags().Int("limit", 0, "process at most this many transactions")

	return cmd
}

func runApply(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	userID, err := requireUser()
	if err != nil {
		return err
	}

	commit, err := cmd.Flags().GetBool("commit")
	if err != nil {
		return err
	}
	filter, err := filterFromFlags(cmd)
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

	eng, err := engine.New(ctx, storage, userID, engine.Options{DryRun: !commit})
	if err != nil {
		return fmt.Errorf("failed to create rule engine: %w", err)
	}
	if eng.RuleCount() == 0 {
		fmt.Println(cli.InfoStyle.Render("No active rules. Use 'ruleflow rules add' to create one.")) //nolint:forbidigo // User-facing output
		return nil
	}

	txns, err := storage.GetTransactions(ctx, userID, filter)
	if err != nil {
		return fmt.Errorf("failed to get transactions: %w", err)
	}
	if len(txns) == 0 {
		fmt.Println(cli.InfoStyle.Render("No transactions to process.")) //nolint:forbidigo // User-facing output
		return nil
	}

	mode := "Dry run"
	if commit {
		mode = "Applying"
	}
	fmt.Println(cli.FormatTitle(fmt.Sprintf("%s: %d rules over %d transactions", mode, eng.RuleCount(), len(txns)))) //nolint:forbidigo // User-facing output

	bar := progressbar.NewOptions(len(txns),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Applying rules...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	results, err := eng.ProcessBatch(ctx, txns, func(done, _ int) {
		_ = bar.Set(done)
	})
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("rule apply failed: %w", err)
	}

	summarizeResults(results, commit)
	return nil
}

func filterFromFlags(cmd *cobra.Command) (service.TransactionFilter, error) {
	var filter service.TransactionFilter

	if from, _ := cmd.Flags().GetString("from"); from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filter, fmt.Errorf("invalid --from date %q: %w", from, err)
		}
		filter.StartDate = &parsed
	}
	if to, _ := cmd.Flags().GetString("to"); to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, fmt.Errorf("invalid --to date %q: %w", to, err)
		}
		filter.EndDate = &parsed
	}
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	return filter, nil
}

func summarizeResults(results []engine.Result, committed bool) {
	matched := 0
	changed := 0
	fieldCounts := make(map[string]int)

	for _, result := range results {
		if len(result.MatchedIDs) > 0 {
			matched++
		}
		if len(result.Changes) > 0 {
			changed++
			for field := range result.Changes {
				fieldCounts[field]++
			}
		}
	}

	fmt.Println() //nolint:forbidigo // User-facing output
	fmt.Printf("%s %d of %d transactions matched at least one rule\n", //nolint:forbidigo // User-facing output
		cli.InfoIcon, matched, len(results))

	verb := "would change"
	if committed {
		verb = "changed"
	}
	fmt.Printf("%s %d transactions %s\n", cli.InfoIcon, changed, verb) //nolint:forbidigo // User-facing output

	for _, field := range sortedFieldCounts(fieldCounts) {
		fmt.Printf("    %s: %d\n", field, fieldCounts[field]) //nolint:forbidigo // User-facing output
	}

	if !committed && changed > 0 {
		fmt.Println() //nolint:forbidigo // User-facing output
		fmt.Println(cli.FormatInfo("Dry run only. Re-run with --commit to persist these changes.")) //nolint:forbidigo // User-facing output
	}
}

func sortedFieldCounts(counts map[string]int) []string {
	fields := make([]string, 0, len(counts))
	for field := range counts {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
