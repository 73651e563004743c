package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/budgetwise/ruleflow/internal/model"
	"github.com/budgetwise/ruleflow/internal/service"
)

// ruleToggleContext carries the shared state of the single-rule
// subcommands (delete, enable, disable).
type ruleToggleContext struct {
	ctx     context.Context
	storage service.Storage
	userID  string
	id      int64
}

// runRuleToggle resolves the user, the rule id, and storage, then runs
// the given operation against the rule.
func runRuleToggle(cmd *cobra.Command, arg string, op func(ruleToggleContext) error) error {
	ctx := cmd.Context()

	userID, err := requireUser()
	if err != nil {
		return err
	}
	id, err := parseRuleID(arg)
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

	return op(ruleToggleContext{ctx: ctx, storage: storage, userID: userID, id: id})
}

// writeRulesYAML renders rules in the YAML authoring format accepted by
// 'rules add' and 'rules import'.
func writeRulesYAML(w io.Writer, rules []*model.Rule) error {
	file := ruleFile{Rules: make([]ruleDoc, 0, len(rules))}
	for _, rule := range rules {
		doc, err := ruleToDoc(rule)
		if err != nil {
			return err
		}
		file.Rules = append(file.Rules, doc)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	return enc.Close()
}
