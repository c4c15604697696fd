/**
 * @description
 * Account views: the user's account list with summary cards, search and filter
 * over the loaded snapshot, account details, dashboard metrics, account creation,
 * transfer history and profile.
 *
 * @notes
 * - Search and filter work on the snapshot stored at load time and never re-fetch.
 * - A failed load renders an error state for the account region only.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/transfa/portal-service/internal/domain"
	"github.com/transfa/portal-service/internal/store"
	"github.com/transfa/portal-service/pkg/bankclient"
)

// PageState is the rendering state of a data region.
type PageState string

const (
	PageLoaded PageState = "loaded"
	PageEmpty  PageState = "empty"
	PageError  PageState = "error"
)

const (
	lowBalanceThreshold  = 100
	accountsLoadErrorMsg = "Error loading accounts. Please try refreshing the page."
	needTwoAccountsMsg   = "You need at least 2 accounts to make a transfer. Please create another account first."
)

// AccountsPage is the account list region.
type AccountsPage struct {
	State    PageState             `json:"state"`
	Accounts []domain.Account      `json:"accounts"`
	Summary  domain.AccountSummary `json:"summary"`
	Error    string                `json:"error,omitempty"`
}

// DashboardPage is the dashboard model.
type DashboardPage struct {
	Accounts       AccountsPage             `json:"accounts"`
	Metrics        *domain.DashboardMetrics `json:"metrics,omitempty"`
	Notices        []string                 `json:"notices,omitempty"`
	CanTransfer    bool                     `json:"can_transfer"`
	TransferNotice string                   `json:"transfer_notice,omitempty"`
}

// AccountViews renders the account pages of a session.
type AccountViews struct {
	bank     BankAPI
	sessions store.SessionStore
	retry    bankclient.RetryPolicy
}

func NewAccountViews(bank BankAPI, sessions store.SessionStore, retry bankclient.RetryPolicy) *AccountViews {
	if retry.Retryable == nil {
		// A rejected token stays rejected.
		retry.Retryable = func(err error) bool { return !RequiresLogout(err) }
	}
	return &AccountViews{bank: bank, sessions: sessions, retry: retry}
}

// LoadUserAccounts fetches the user's accounts with retry and stores the
// snapshot used by search, filter and transfer validation. Load failures become
// an error page; only an error that ends the session is returned.
func (v *AccountViews) LoadUserAccounts(ctx context.Context, sid string, user domain.User) (AccountsPage, error) {
	accounts, err := bankclient.Retry(ctx, v.retry, func() ([]domain.Account, error) {
		return v.bank.UserAccounts(ctx, user.Token, user.UserID)
	})
	if err != nil {
		if RequiresLogout(err) {
			return AccountsPage{}, err
		}
		log.Printf("level=warn component=accounts msg=\"account load failed\" user_id=%s err=%v", user.UserID, err)
		return AccountsPage{State: PageError, Accounts: []domain.Account{}, Summary: Summarize(nil), Error: accountsLoadErrorMsg}, nil
	}
	if err := v.sessions.Set(ctx, sid, domain.KeyUserAccounts, accounts); err != nil {
		log.Printf("level=warn component=accounts msg=\"account snapshot store failed\" err=%v", err)
	}
	return pageFor(accounts), nil
}

func pageFor(accounts []domain.Account) AccountsPage {
	if len(accounts) == 0 {
		return AccountsPage{State: PageEmpty, Accounts: []domain.Account{}, Summary: Summarize(nil)}
	}
	return AccountsPage{State: PageLoaded, Accounts: accounts, Summary: Summarize(accounts)}
}

// Summarize totals the balances. The average is only set for a non-empty list.
func Summarize(accounts []domain.Account) domain.AccountSummary {
	summary := domain.AccountSummary{Count: len(accounts), TotalBalance: decimal.Zero}
	for _, account := range accounts {
		summary.TotalBalance = summary.TotalBalance.Add(account.Balance)
	}
	if summary.Count > 0 {
		average := summary.TotalBalance.Div(decimal.NewFromInt(int64(summary.Count)))
		summary.AverageBalance = &average
	}
	return summary
}

func (v *AccountViews) snapshot(ctx context.Context, sid string) ([]domain.Account, error) {
	return readAccounts(ctx, v.sessions, sid, domain.KeyUserAccounts)
}

// FilterAccountsByType filters the stored snapshot. "all" returns everything;
// otherwise the type is compared case-insensitively.
func (v *AccountViews) FilterAccountsByType(ctx context.Context, sid, accountType string) (AccountsPage, error) {
	accounts, err := v.snapshot(ctx, sid)
	if err != nil {
		return AccountsPage{}, err
	}
	return pageFor(FilterByType(accounts, accountType)), nil
}

// SearchAccounts searches the stored snapshot.
func (v *AccountViews) SearchAccounts(ctx context.Context, sid, query string) (AccountsPage, error) {
	accounts, err := v.snapshot(ctx, sid)
	if err != nil {
		return AccountsPage{}, err
	}
	return pageFor(Search(accounts, query)), nil
}

// FilterByType keeps accounts whose type equals accountType ignoring case.
func FilterByType(accounts []domain.Account, accountType string) []domain.Account {
	accountType = strings.TrimSpace(accountType)
	if accountType == "" || strings.EqualFold(accountType, "all") {
		return accounts
	}
	filtered := make([]domain.Account, 0, len(accounts))
	for _, account := range accounts {
		if account.AccountType != "" && strings.EqualFold(account.AccountType, accountType) {
			filtered = append(filtered, account)
		}
	}
	return filtered
}

// Search matches name and type case-insensitively and the account number as a
// plain substring. A blank query returns every account.
func Search(accounts []domain.Account, query string) []domain.Account {
	if strings.TrimSpace(query) == "" {
		return accounts
	}
	lowered := strings.ToLower(query)
	matched := make([]domain.Account, 0, len(accounts))
	for _, account := range accounts {
		if strings.Contains(strings.ToLower(account.AccountName), lowered) ||
			strings.Contains(account.AccountNumber, query) ||
			strings.Contains(strings.ToLower(account.AccountType), lowered) {
			matched = append(matched, account)
		}
	}
	return matched
}

// AccountDetails returns one of the user's accounts, preferring the snapshot.
func (v *AccountViews) AccountDetails(ctx context.Context, sid string, user domain.User, accountID domain.ID) (*domain.Account, error) {
	accounts, err := v.snapshot(ctx, sid)
	if err != nil {
		return nil, err
	}
	if account, ok := domain.FindAccount(accounts, accountID); ok {
		return &account, nil
	}
	account, err := v.bank.Account(ctx, user.Token, accountID)
	if err != nil {
		return nil, err
	}
	// Ownership can only be checked when the banking API reports the owner;
	// the banking API remains the authority on access.
	if account.UserID != "" && account.UserID != user.UserID {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// SelectForTransfer stores accountID as the pre-selected transfer source.
func (v *AccountViews) SelectForTransfer(ctx context.Context, sid string, accountID domain.ID) error {
	if accountID == "" {
		return ErrAccountNotFound
	}
	return v.sessions.Set(ctx, sid, domain.KeySelectedFromAccount, accountID)
}

// Dashboard loads the accounts and derives metrics and notices. Like
// LoadUserAccounts it only returns errors that end the session.
func (v *AccountViews) Dashboard(ctx context.Context, sid string, user domain.User) (DashboardPage, error) {
	accounts, err := v.LoadUserAccounts(ctx, sid, user)
	if err != nil {
		return DashboardPage{}, err
	}
	page := DashboardPage{Accounts: accounts}
	if page.Accounts.State == PageError {
		return page, nil
	}
	page.Metrics = CalculateDashboardMetrics(page.Accounts.Accounts)
	page.Notices = LowBalanceNotices(page.Accounts.Accounts)
	page.CanTransfer, page.TransferNotice = QuickTransferAllowed(page.Accounts.Accounts)
	return page, nil
}

// CalculateDashboardMetrics returns nil for an empty account list.
func CalculateDashboardMetrics(accounts []domain.Account) *domain.DashboardMetrics {
	if len(accounts) == 0 {
		return nil
	}
	summary := Summarize(accounts)
	types := make(map[string]struct{})
	for _, account := range accounts {
		types[account.AccountType] = struct{}{}
	}
	return &domain.DashboardMetrics{
		TotalBalance:   summary.TotalBalance,
		AccountCount:   summary.Count,
		AccountTypes:   len(types),
		AverageBalance: *summary.AverageBalance,
	}
}

// LowBalanceNotices warns about every account below the low-balance threshold.
func LowBalanceNotices(accounts []domain.Account) []string {
	threshold := decimal.NewFromInt(lowBalanceThreshold)
	var notices []string
	for _, account := range accounts {
		if account.Balance.LessThan(threshold) {
			notices = append(notices, fmt.Sprintf("Low balance in %s: %s", account.AccountName, FormatCurrency(account.Balance)))
		}
	}
	return notices
}

// QuickTransferAllowed requires at least two accounts for the dashboard shortcut.
func QuickTransferAllowed(accounts []domain.Account) (bool, string) {
	if len(accounts) < 2 {
		return false, needTwoAccountsMsg
	}
	return true, ""
}

// CreateAccount validates the form and opens a new account.
func (v *AccountViews) CreateAccount(ctx context.Context, sid string, user domain.User, form CreateAccountForm) (*domain.Account, error) {
	balance, errs := ValidateCreateAccount(form)
	if err := newValidationError(errs); err != nil {
		return nil, err
	}
	account, err := v.bank.CreateAccount(ctx, user.Token, domain.CreateAccountRequest{
		UserID:        user.UserID,
		AccountName:   strings.TrimSpace(form.AccountName),
		AccountType:   strings.TrimSpace(form.AccountType),
		AccountNumber: strings.TrimSpace(form.AccountNumber),
		Balance:       balance,
	})
	if err != nil {
		return nil, err
	}
	// The cached list no longer reflects the server.
	if err := v.sessions.Delete(ctx, sid, domain.KeyUserAccounts); err != nil {
		log.Printf("level=warn component=accounts msg=\"account snapshot invalidate failed\" err=%v", err)
	}
	log.Printf("level=info component=accounts msg=\"account created\" user_id=%s account_id=%s", user.UserID, account.AccountID)
	return account, nil
}

// TransferHistory lists transfers of one of the user's accounts.
func (v *AccountViews) TransferHistory(ctx context.Context, sid string, user domain.User, accountID domain.ID) ([]domain.Transfer, error) {
	if _, err := v.AccountDetails(ctx, sid, user, accountID); err != nil {
		return nil, err
	}
	return bankclient.Retry(ctx, v.retry, func() ([]domain.Transfer, error) {
		return v.bank.TransferHistory(ctx, user.Token, accountID)
	})
}

// Profile fetches the user's profile.
func (v *AccountViews) Profile(ctx context.Context, user domain.User) (*domain.User, error) {
	return v.bank.User(ctx, user.Token, user.UserID)
}

// ProfileForm is the submitted profile form.
type ProfileForm struct {
	UserName    string `json:"userName"`
	PhoneNumber string `json:"phoneNumber"`
}

// UpdateProfile validates and saves the profile. It returns the user as it should
// now be held in the session.
func (v *AccountViews) UpdateProfile(ctx context.Context, user domain.User, form ProfileForm) (*domain.User, error) {
	var errs []string
	name := strings.TrimSpace(form.UserName)
	phone := strings.TrimSpace(form.PhoneNumber)
	if len([]rune(name)) < 2 {
		errs = append(errs, "Full Name must be at least 2 characters")
	}
	if phone != "" && !phonePattern.MatchString(phone) {
		errs = append(errs, "Please enter a valid phone number")
	}
	if err := newValidationError(errs); err != nil {
		return nil, err
	}

	updated, err := v.bank.UpdateUser(ctx, user.Token, user.UserID, domain.UpdateUserRequest{UserName: name, PhoneNumber: phone})
	if err != nil {
		return nil, err
	}

	refreshed := user
	if updated.UserName != "" {
		refreshed.UserName = updated.UserName
	} else {
		refreshed.UserName = name
	}
	if updated.PhoneNumber != "" {
		refreshed.PhoneNumber = updated.PhoneNumber
	} else if phone != "" {
		refreshed.PhoneNumber = phone
	}
	return &refreshed, nil
}
