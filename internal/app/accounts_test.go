package app

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/transfa/portal-service/internal/domain"
	"github.com/transfa/portal-service/pkg/bankclient"
)

func TestSummarize(t *testing.T) {
	empty := Summarize(nil)
	if empty.Count != 0 || !empty.TotalBalance.IsZero() || empty.AverageBalance != nil {
		t.Fatalf("expected zero summary without average, got %+v", empty)
	}

	summary := Summarize([]domain.Account{
		account("1", "1000000001", "Checking", "Checking", "100.50"),
		account("2", "1000000002", "Savings", "Savings", "49.50"),
	})
	if summary.Count != 2 || !summary.TotalBalance.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.AverageBalance == nil || !summary.AverageBalance.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("expected average 75, got %v", summary.AverageBalance)
	}
}

func TestLoadUserAccountsStates(t *testing.T) {
	ctx := context.Background()

	t.Run("loaded", func(t *testing.T) {
		bank := &bankStub{userAccountsFn: func() ([]domain.Account, error) {
			return []domain.Account{account("1", "1000000001", "Checking", "Checking", "10")}, nil
		}}
		views := NewAccountViews(bank, newSessions(), noWaitRetry())
		page, err := views.LoadUserAccounts(ctx, "sid", testUser)
		if err != nil {
			t.Fatalf("unexpected load error: %v", err)
		}
		if page.State != PageLoaded || len(page.Accounts) != 1 {
			t.Fatalf("expected loaded page, got %+v", page)
		}
	})

	t.Run("empty", func(t *testing.T) {
		bank := &bankStub{userAccountsFn: func() ([]domain.Account, error) { return nil, nil }}
		views := NewAccountViews(bank, newSessions(), noWaitRetry())
		page, err := views.LoadUserAccounts(ctx, "sid", testUser)
		if err != nil {
			t.Fatalf("unexpected load error: %v", err)
		}
		if page.State != PageEmpty || page.Summary.AverageBalance != nil {
			t.Fatalf("expected empty page, got %+v", page)
		}
	})

	t.Run("error after retries", func(t *testing.T) {
		bank := &bankStub{userAccountsFn: func() ([]domain.Account, error) {
			return nil, &bankclient.HTTPError{StatusCode: 500, Message: "boom"}
		}}
		views := NewAccountViews(bank, newSessions(), noWaitRetry())
		page, err := views.LoadUserAccounts(ctx, "sid", testUser)
		if err != nil {
			t.Fatalf("unexpected load error: %v", err)
		}
		if page.State != PageError || page.Error != accountsLoadErrorMsg || page.Accounts == nil {
			t.Fatalf("expected error page, got %+v", page)
		}
		if bank.userAccountsCalls != 3 {
			t.Fatalf("expected 3 attempts, got %d", bank.userAccountsCalls)
		}
	})

	t.Run("succeeds on retry", func(t *testing.T) {
		attempts := 0
		bank := &bankStub{userAccountsFn: func() ([]domain.Account, error) {
			attempts++
			if attempts < 2 {
				return nil, &bankclient.NetworkError{Err: errors.New("reset")}
			}
			return []domain.Account{account("1", "1000000001", "Checking", "Checking", "10")}, nil
		}}
		views := NewAccountViews(bank, newSessions(), noWaitRetry())
		if page, err := views.LoadUserAccounts(ctx, "sid", testUser); err != nil || page.State != PageLoaded {
			t.Fatalf("expected loaded page after retry, got %+v", page)
		}
	})

	t.Run("rejected token is returned without retry", func(t *testing.T) {
		bank := &bankStub{userAccountsFn: func() ([]domain.Account, error) {
			return nil, &bankclient.HTTPError{StatusCode: 401, Message: "token expired"}
		}}
		views := NewAccountViews(bank, newSessions(), noWaitRetry())
		_, err := views.LoadUserAccounts(ctx, "sid", testUser)
		if !RequiresLogout(err) {
			t.Fatalf("expected a logout error, got %v", err)
		}
		if bank.userAccountsCalls != 1 {
			t.Fatalf("expected 1 attempt, got %d", bank.userAccountsCalls)
		}
		if _, err := views.Dashboard(ctx, "sid", testUser); !RequiresLogout(err) {
			t.Fatalf("expected dashboard to return the logout error, got %v", err)
		}
	})
}

func TestFilterAndSearchUseSnapshot(t *testing.T) {
	ctx := context.Background()
	bank := &bankStub{userAccountsFn: func() ([]domain.Account, error) {
		return []domain.Account{
			account("1", "1000000001", "Everyday", "Checking", "10"),
			account("2", "2000000002", "Rainy Day", "Savings", "20"),
			account("3", "3000000003", "Holiday", "savings", "30"),
		}, nil
	}}
	views := NewAccountViews(bank, newSessions(), noWaitRetry())
	if _, err := views.LoadUserAccounts(ctx, "sid", testUser); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	filtered, err := views.FilterAccountsByType(ctx, "sid", "SAVINGS")
	if err != nil {
		t.Fatalf("unexpected filter error: %v", err)
	}
	if got := ids(filtered.Accounts); !reflect.DeepEqual(got, []domain.ID{"2", "3"}) {
		t.Fatalf("expected savings accounts, got %v", got)
	}

	all, _ := views.FilterAccountsByType(ctx, "sid", "all")
	if len(all.Accounts) != 3 {
		t.Fatalf("expected all accounts, got %d", len(all.Accounts))
	}

	tests := map[string][]domain.ID{
		"day":      {"1", "2", "3"},
		"0000000":  {"1", "2", "3"},
		"20000":    {"2"},
		"checking": {"1"},
		"  ":       {"1", "2", "3"},
		"nothing":  {},
	}
	for query, want := range tests {
		page, err := views.SearchAccounts(ctx, "sid", query)
		if err != nil {
			t.Fatalf("unexpected search error: %v", err)
		}
		if got := ids(page.Accounts); !reflect.DeepEqual(got, want) {
			t.Fatalf("search %q: expected %v, got %v", query, want, got)
		}
	}

	if bank.userAccountsCalls != 1 {
		t.Fatalf("expected filter and search not to refetch, got %d calls", bank.userAccountsCalls)
	}
}

func ids(accounts []domain.Account) []domain.ID {
	out := []domain.ID{}
	for _, account := range accounts {
		out = append(out, account.AccountID)
	}
	return out
}

func TestDashboardMetricsAndNotices(t *testing.T) {
	accounts := []domain.Account{
		account("1", "1000000001", "Everyday", "Checking", "50"),
		account("2", "2000000002", "Rainy Day", "Savings", "250"),
		account("3", "3000000003", "Bills", "Checking", "300"),
	}

	metrics := CalculateDashboardMetrics(accounts)
	if metrics == nil || metrics.AccountCount != 3 || metrics.AccountTypes != 2 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
	if !metrics.TotalBalance.Equal(decimal.NewFromInt(600)) || !metrics.AverageBalance.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected totals %+v", metrics)
	}
	if CalculateDashboardMetrics(nil) != nil {
		t.Fatalf("expected no metrics for an empty list")
	}

	notices := LowBalanceNotices(accounts)
	if !reflect.DeepEqual(notices, []string{"Low balance in Everyday: $50.00"}) {
		t.Fatalf("unexpected notices %q", notices)
	}

	if ok, msg := QuickTransferAllowed(accounts[:1]); ok || msg != needTwoAccountsMsg {
		t.Fatalf("expected quick transfer to need two accounts, got %t %q", ok, msg)
	}
	if ok, _ := QuickTransferAllowed(accounts); !ok {
		t.Fatalf("expected quick transfer to be allowed")
	}
}

func TestDashboardKeepsErrorRegion(t *testing.T) {
	bank := &bankStub{userAccountsFn: func() ([]domain.Account, error) {
		return nil, &bankclient.NetworkError{Err: errors.New("offline")}
	}}
	views := NewAccountViews(bank, newSessions(), noWaitRetry())
	page, err := views.Dashboard(context.Background(), "sid", testUser)
	if err != nil {
		t.Fatalf("unexpected dashboard error: %v", err)
	}
	if page.Accounts.State != PageError || page.Metrics != nil || page.CanTransfer {
		t.Fatalf("expected error dashboard, got %+v", page)
	}
}

func TestCreateAccountInvalidatesSnapshot(t *testing.T) {
	ctx := context.Background()
	sessions := newSessions()
	bank := &bankStub{userAccountsFn: func() ([]domain.Account, error) {
		return []domain.Account{account("1", "1000000001", "Everyday", "Checking", "50")}, nil
	}}
	views := NewAccountViews(bank, sessions, noWaitRetry())
	if _, err := views.LoadUserAccounts(ctx, "sid", testUser); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if _, err := views.CreateAccount(ctx, "sid", testUser, CreateAccountForm{AccountName: "X"}); err == nil {
		t.Fatalf("expected validation error")
	}
	if bank.createAccountCalls != 0 {
		t.Fatalf("expected invalid form not to reach the bank")
	}

	created, err := views.CreateAccount(ctx, "sid", testUser, CreateAccountForm{AccountName: "Travel", AccountType: "Savings", InitialBalance: "10"})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if created.AccountName != "Travel" || !created.Balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected account %+v", created)
	}

	state, err := LoadState(ctx, sessions, "sid")
	if err != nil {
		t.Fatalf("unexpected state error: %v", err)
	}
	if state.UserAccounts != nil {
		t.Fatalf("expected snapshot to be invalidated, got %v", state.UserAccounts)
	}
}

func TestSelectForTransferStoresHint(t *testing.T) {
	ctx := context.Background()
	sessions := newSessions()
	views := NewAccountViews(&bankStub{}, sessions, noWaitRetry())

	if err := views.SelectForTransfer(ctx, "sid", ""); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := views.SelectForTransfer(ctx, "sid", "7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var hint domain.ID
	if err := sessions.Get(ctx, "sid", domain.KeySelectedFromAccount, &hint); err != nil || hint != "7" {
		t.Fatalf("expected hint 7, got %q err=%v", hint, err)
	}
}
