// Package core holds the domain types and the transaction rules.
//
// The rules are small but load bearing: amounts are normalized on write so
// that expenses and transfers are never positive and incomes never negative,
// and the type shown to clients is always recomputed from the stored data
// rather than trusted from storage.
package core

import (
	"math"
	"time"
)

// CorrectAmountSign flips tx.Amount when its sign disagrees with tx.Type.
// Expense and Transfer require amount <= 0, Income requires amount >= 0.
// Inconsistent input is corrected silently; an unknown type is left alone.
// Applying it more than once has no further effect.
func CorrectAmountSign(tx *Transaction) {
	if tx == nil {
		return
	}
	switch {
	case tx.Type == Expense && tx.Amount > 0,
		tx.Type == Income && tx.Amount < 0,
		tx.Type == Transfer && tx.Amount > 0:
		tx.Amount = negate(tx.Amount)
	}
}

// negate saturates at MaxInt64: -MinInt64 does not fit in an int64.
func negate(n int64) int64 {
	if n == math.MinInt64 {
		return math.MaxInt64
	}
	return -n
}

// DeriveType computes the display type: a destination account makes it a
// Transfer, otherwise a positive amount is Income and anything else Expense.
func DeriveType(toAccountID *int64, amount int64) TransactionType {
	if toAccountID != nil {
		return Transfer
	}
	if amount > 0 {
		return Income
	}
	return Expense
}

// Enrich overwrites tx.Type with the derived type. The amount is untouched.
func Enrich(tx *Transaction) {
	if tx == nil {
		return
	}
	tx.Type = DeriveType(tx.ToAccountID, tx.Amount)
}

// Skeleton returns a form template dated now, typed Expense, with an empty
// tag set and the first of accounts as source account when there is one.
func Skeleton(now time.Time, accounts []Account) Transaction {
	skeleton := Transaction{
		Date:   now,
		Type:   Expense,
		TagIDs: []int64{},
	}
	if len(accounts) > 0 {
		id := accounts[0].ID
		skeleton.AccountID = &id
	}
	return skeleton
}
