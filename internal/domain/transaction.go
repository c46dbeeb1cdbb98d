package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType classifies a transaction as money in or money out.
type TxType string

const (
	TxExpense TxType = "EXPENSE"
	TxIncome  TxType = "INCOME"
)

// RecurringInterval is the cadence of a recurring transaction.
type RecurringInterval string

const (
	IntervalDaily   RecurringInterval = "DAILY"
	IntervalWeekly  RecurringInterval = "WEEKLY"
	IntervalMonthly RecurringInterval = "MONTHLY"
	IntervalYearly  RecurringInterval = "YEARLY"
)

// Recognized reports whether the interval is one of the supported cadences.
func (i RecurringInterval) Recognized() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalYearly:
		return true
	}
	return false
}

// Transaction is the canonical, validated representation of one ledger entry.
// Amount is always positive; the sign is carried by Type.
type Transaction struct {
	ID        string
	UserID    string
	AccountID string

	Amount decimal.Decimal
	Type   TxType
	Date   time.Time

	Description  string
	Counterparty string // empty means absent
	Category     string

	IsRecurring       bool
	RecurringInterval RecurringInterval
	NextRecurringDate *time.Time // set iff IsRecurring and interval recognized

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SignedAmount returns the balance delta this transaction contributes:
// positive for INCOME, negative for EXPENSE.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TxIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}
