package accounts

import (
	"errors"
	"strings"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Side is the normal balance side of an account.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// Account models a chart of accounts node. Codes are dot segmented and Level
// equals the number of segments.
type Account struct {
	Code   string      `json:"code"`
	Name   string      `json:"name"`
	Type   AccountType `json:"type"`
	Level  int         `json:"level"`
	Parent string      `json:"parent,omitempty"`
}

// NormalBalance returns the side on which the account increases.
func (a Account) NormalBalance() Side {
	switch a.Type {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// ParentCode derives the parent code from a dotted account code.
func ParentCode(code string) string {
	idx := strings.LastIndex(code, ".")
	if idx <= 0 {
		return ""
	}
	return code[:idx]
}

// CodeLevel returns the number of segments in code.
func CodeLevel(code string) int {
	if code == "" {
		return 0
	}
	return strings.Count(code, ".") + 1
}

var (
	// ErrUnknownAccount indicates a code missing from the chart.
	ErrUnknownAccount = errors.New("accounting: unknown account")
	// ErrNotLeafAccount indicates a posting against a group account.
	ErrNotLeafAccount = errors.New("accounting: account is not a detail account")
	// ErrInvalidChart indicates a structurally inconsistent chart.
	ErrInvalidChart = errors.New("accounting: invalid chart of accounts")
)
