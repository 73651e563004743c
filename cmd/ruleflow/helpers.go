package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/viper"

	"github.com/budgetwise/ruleflow/internal/common"
	"github.com/budgetwise/ruleflow/internal/config"
	"github.com/budgetwise/ruleflow/internal/model"
	"github.com/budgetwise/ruleflow/internal/service"
	"github.com/budgetwise/ruleflow/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/ruleflow/ruleflow.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// requireUser resolves the user id every rule command operates on.
func requireUser() (string, error) {
	userID := viper.GetString("user")
	if userID == "" {
		return "", common.NewUserError(
			"No user id configured. Pass --user or set 'user' in the config file.",
			fmt.Errorf("user id is required"))
	}
	return userID, nil
}

// parseRuleID parses a rule id command argument.
func parseRuleID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewUserError(
			fmt.Sprintf("%q is not a valid rule id.", arg),
			fmt.Errorf("invalid rule id %q", arg))
	}
	return id, nil
}

// ruleDoc is the YAML shape of one rule in an authoring file. Criteria
// and actions are free-form YAML trees matching the stored JSON formats.
type ruleDoc struct {
	Criteria map[string]any `yaml:"criteria"`
	Actions  map[string]any `yaml:"actions"`
	Name     string         `yaml:"name"`
	Priority int            `yaml:"priority"`
	Active   *bool          `yaml:"active,omitempty"`
}

// ruleFile is a YAML file holding one or more rules.
type ruleFile struct {
	Rules []ruleDoc `yaml:"rules"`
}

// docToRule converts a YAML rule document into the canonical model form,
// going through the stored JSON decoders so YAML authoring and database
// storage accept exactly the same shapes.
func docToRule(doc ruleDoc, userID string) (*model.Rule, error) {
	if doc.Name == "" {
		return nil, fmt.Errorf("rule is missing a name")
	}

	criteriaJSON, err := json.Marshal(doc.Criteria)
	if err != nil {
		return nil, fmt.Errorf("rule %q: failed to encode criteria: %w", doc.Name, err)
	}
	criteria, err := model.DecodeCriteria(criteriaJSON, criteriaVersion(doc.Criteria))
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", doc.Name, err)
	}

	actionsJSON, err := json.Marshal(doc.Actions)
	if err != nil {
		return nil, fmt.Errorf("rule %q: failed to encode actions: %w", doc.Name, err)
	}
	actions, err := model.DecodeActions(actionsJSON, model.ActionsFormatVersion)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", doc.Name, err)
	}

	active := true
	if doc.Active != nil {
		active = *doc.Active
	}

	return &model.Rule{
		UserID:   userID,
		Name:     doc.Name,
		Priority: doc.Priority,
		IsActive: active,
		Criteria: criteria,
		Actions:  actions,
	}, nil
}

// criteriaVersion infers the stored format of a YAML criteria tree. A
// document with a root key is the current envelope form; a bare node is
// the legacy single-condition form.
func criteriaVersion(doc map[string]any) int {
	if _, hasRoot := doc["root"]; hasRoot {
		return model.CriteriaFormatVersion
	}
	return 1
}

// ruleToDoc converts a stored rule back to its YAML authoring shape.
func ruleToDoc(rule *model.Rule) (ruleDoc, error) {
	criteriaJSON, err := model.EncodeCriteria(rule.Criteria)
	if err != nil {
		return ruleDoc{}, err
	}
	var criteria map[string]any
	if err := json.Unmarshal(criteriaJSON, &criteria); err != nil {
		return ruleDoc{}, fmt.Errorf("failed to decode criteria for rule %d: %w", rule.ID, err)
	}

	actionsJSON, err := model.EncodeActions(rule.Actions)
	if err != nil {
		return ruleDoc{}, err
	}
	var actions map[string]any
	if err := json.Unmarshal(actionsJSON, &actions); err != nil {
		return ruleDoc{}, fmt.Errorf("failed to decode actions for rule %d: %w", rule.ID, err)
	}

	active := rule.IsActive
	return ruleDoc{
		Name:     rule.Name,
		Priority: rule.Priority,
		Active:   &active,
		Criteria: criteria,
		Actions:  actions,
	}, nil
}
