package model

import "time"

// Rule is one user-authored import rule: a criteria tree deciding
// whether the rule matches a transaction, and the action list applied
// when it does. Criteria and Actions are decoded once at load time; the
// raw stored documents live only in the persistence layer.
type Rule struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	Criteria  CriteriaTree
	Name      string
	UserID    string
	Actions   ActionSet
	ID        int64
	Priority  int
	IsActive  bool
}

// StopProcessing reports whether rule evaluation should halt after this
// rule's actions have been applied.
func (r *Rule) StopProcessing() bool {
	return r.Actions.StopProcessing
}
