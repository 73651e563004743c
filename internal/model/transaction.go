package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction type values set_type may assign.
const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

// Transaction represents a single imported financial transaction. It is
// created by the import pipeline before rule evaluation, mutated in
// place by the rule applicator, and persisted by the caller afterwards.
type Transaction struct {
	Date        time.Time
	CategoryID  *int64
	AccountID   *int64
	ID          string
	UserID      string
	Description string
	Vendor      string
	Notes       string
	Reference   string
	Type        string
	Hash        string
	Tags        []int64
	Amount      float64
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Description,
		t.UserID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// FieldValue returns the string form of a criteria field for matching.
// Unknown fields coerce to an empty string rather than failing, so a
// condition against a field this record does not carry simply does not
// match non-empty patterns.
func (t *Transaction) FieldValue(field FieldName) string {
	switch field {
	case FieldDescription:
		return t.Description
	case FieldVendor:
		return t.Vendor
	case FieldReference:
		return t.Reference
	case FieldNotes:
		return t.Notes
	case FieldDate:
		if t.Date.IsZero() {
			return ""
		}
		return t.Date.Format("2006-01-02")
	case FieldAmount:
		return fmt.Sprintf("%v", t.Amount)
	}
	return ""
}

// HasTag reports whether the transaction already carries the tag.
func (t *Transaction) HasTag(id int64) bool {
	for _, existing := range t.Tags {
		if existing == id {
			return true
		}
	}
	return false
}
