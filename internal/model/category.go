package model

import "time"

// CategoryType distinguishes income and expense categories.
type CategoryType string

// Category types.
const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Category is a user-owned spending category a rule may assign.
type Category struct {
	CreatedAt time.Time
	Name      string
	UserID    string
	Type      CategoryType
	ID        int64
	IsActive  bool
}

// Account is a user-owned account a rule may assign.
type Account struct {
	CreatedAt   time.Time
	Name        string
	UserID      string
	Institution string
	ID          int64
	IsActive    bool
}

// Tag is a user-owned label attachable to transactions.
type Tag struct {
	CreatedAt time.Time
	Name      string
	UserID    string
	ID        int64
}
