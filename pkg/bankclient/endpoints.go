package bankclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/transfa/portal-service/internal/domain"
)

func path(format string, id domain.ID) string {
	return fmt.Sprintf(format, url.PathEscape(id.String()))
}

func (c *Client) send(ctx context.Context, token, method, endpoint string, payload any, out any) error {
	body, err := c.body(payload)
	if err != nil {
		return err
	}
	return c.CallAuthenticated(ctx, token, method, endpoint, body, out)
}

// Login authenticates a user by phone number and password.
func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (*domain.User, error) {
	var user domain.User
	if err := c.send(ctx, "", http.MethodPost, "/auth/login", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Register creates a new banking user.
func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) error {
	return c.send(ctx, "", http.MethodPost, "/auth/register", req, nil)
}

// Logout ends the remote session.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.send(ctx, token, http.MethodPost, "/auth/logout", nil, nil)
}

// CurrentUser returns the user bound to token.
func (c *Client) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	var user domain.User
	if err := c.send(ctx, token, http.MethodGet, "/auth/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserAccounts lists the accounts owned by userID.
func (c *Client) UserAccounts(ctx context.Context, token string, userID domain.ID) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := c.send(ctx, token, http.MethodGet, path("/accounts/user/%s", userID), nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// AllAccounts lists every account visible as a transfer destination.
func (c *Client) AllAccounts(ctx context.Context, token string) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := c.send(ctx, token, http.MethodGet, "/accounts/all", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Account fetches one account.
func (c *Client) Account(ctx context.Context, token string, accountID domain.ID) (*domain.Account, error) {
	var account domain.Account
	if err := c.send(ctx, token, http.MethodGet, path("/accounts/%s", accountID), nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateAccount opens a new account.
func (c *Client) CreateAccount(ctx context.Context, token string, req domain.CreateAccountRequest) (*domain.Account, error) {
	var account domain.Account
	if err := c.send(ctx, token, http.MethodPost, "/accounts/create", req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateAccount changes the mutable fields of an account.
func (c *Client) UpdateAccount(ctx context.Context, token string, accountID domain.ID, req domain.UpdateAccountRequest) (*domain.Account, error) {
	var account domain.Account
	if err := c.send(ctx, token, http.MethodPut, path("/accounts/%s", accountID), req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// DeleteAccount closes an account.
func (c *Client) DeleteAccount(ctx context.Context, token string, accountID domain.ID) error {
	return c.send(ctx, token, http.MethodDelete, path("/accounts/%s", accountID), nil, nil)
}

// InitiateTransfer requests a transfer. The banking API answers with an OTP to be
// verified before funds move.
func (c *Client) InitiateTransfer(ctx context.Context, token string, req domain.TransferRequest) (*domain.TransferInitiation, error) {
	var initiation domain.TransferInitiation
	if err := c.send(ctx, token, http.MethodPost, "/transfers/transfer", req, &initiation); err != nil {
		return nil, err
	}
	return &initiation, nil
}

// VerifyOTP completes a pending transfer.
func (c *Client) VerifyOTP(ctx context.Context, token string, req domain.VerifyOTPRequest) (*domain.TransferReceipt, error) {
	var receipt domain.TransferReceipt
	if err := c.send(ctx, token, http.MethodPost, "/transfers/verify-otp", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// TransferHistory lists transfers touching accountID.
func (c *Client) TransferHistory(ctx context.Context, token string, accountID domain.ID) ([]domain.Transfer, error) {
	var transfers []domain.Transfer
	if err := c.send(ctx, token, http.MethodGet, path("/transfers/history/%s", accountID), nil, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

// AllTransfers lists every transfer.
func (c *Client) AllTransfers(ctx context.Context, token string) ([]domain.Transfer, error) {
	var transfers []domain.Transfer
	if err := c.send(ctx, token, http.MethodGet, "/transfers/all", nil, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

// Transfer fetches one transfer.
func (c *Client) Transfer(ctx context.Context, token string, transferID domain.ID) (*domain.Transfer, error) {
	var transfer domain.Transfer
	if err := c.send(ctx, token, http.MethodGet, path("/transfers/%s", transferID), nil, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// AllUsers lists every banking user.
func (c *Client) AllUsers(ctx context.Context, token string) ([]domain.User, error) {
	var users []domain.User
	if err := c.send(ctx, token, http.MethodGet, "/users/all", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// User fetches one user profile.
func (c *Client) User(ctx context.Context, token string, userID domain.ID) (*domain.User, error) {
	var user domain.User
	if err := c.send(ctx, token, http.MethodGet, path("/users/%s", userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser changes a user profile.
func (c *Client) UpdateUser(ctx context.Context, token string, userID domain.ID, req domain.UpdateUserRequest) (*domain.User, error) {
	var user domain.User
	if err := c.send(ctx, token, http.MethodPut, path("/users/%s", userID), req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, token string, userID domain.ID) error {
	return c.send(ctx, token, http.MethodDelete, path("/users/%s", userID), nil, nil)
}
