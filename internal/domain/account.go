/**
 * @description
 * This file defines the account models the portal receives from the banking API.
 *
 * @notes
 * - Balances are a read-only snapshot of what the banking API returned. They can be
 *   stale, so anything computed from them in the portal is advisory only.
 * - Money is carried as shopspring/decimal to avoid floating-point drift.
 */

package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ID is an identifier issued by the banking API. The API is not consistent about
// encoding ids as strings or numbers, so both are accepted.
type ID string

// UnmarshalJSON accepts both `"42"` and `42`.
func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Account is a user's bank account as reported by the banking API.
type Account struct {
	AccountID     ID              `json:"accountId"`
	AccountNumber string          `json:"accountNumber"`
	AccountName   string          `json:"accountName"`
	AccountType   string          `json:"accountType"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedDate   string          `json:"createdDate,omitempty"`
	UserID        ID              `json:"userId,omitempty"`
}

// AccountSummary aggregates a list of accounts for the summary cards.
// AverageBalance is nil when there are no accounts.
type AccountSummary struct {
	Count          int              `json:"count"`
	TotalBalance   decimal.Decimal  `json:"total_balance"`
	AverageBalance *decimal.Decimal `json:"average_balance,omitempty"`
}

// DashboardMetrics is the set of figures displayed on the dashboard.
type DashboardMetrics struct {
	TotalBalance   decimal.Decimal `json:"total_balance"`
	AccountCount   int             `json:"account_count"`
	AccountTypes   int             `json:"account_types"`
	AverageBalance decimal.Decimal `json:"average_balance"`
}

// CreateAccountRequest is sent to the banking API to open a new account.
type CreateAccountRequest struct {
	UserID        ID              `json:"userId"`
	AccountName   string          `json:"accountName"`
	AccountType   string          `json:"accountType"`
	AccountNumber string          `json:"accountNumber,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
}

// UpdateAccountRequest carries the mutable account fields.
type UpdateAccountRequest struct {
	AccountName string `json:"accountName,omitempty"`
	AccountType string `json:"accountType,omitempty"`
}

// FindAccount returns the account with the given id from a snapshot.
func FindAccount(accounts []Account, id ID) (Account, bool) {
	for _, account := range accounts {
		if account.AccountID == id {
			return account, true
		}
	}
	return Account{}, false
}
