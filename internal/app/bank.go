package app

import (
	"context"

	"github.com/transfa/portal-service/internal/domain"
)

// BankAPI is the subset of the banking API client the portal uses.
type BankAPI interface {
	Login(ctx context.Context, req domain.LoginRequest) (*domain.User, error)
	Register(ctx context.Context, req domain.RegisterRequest) error
	Logout(ctx context.Context, token string) error
	UserAccounts(ctx context.Context, token string, userID domain.ID) ([]domain.Account, error)
	AllAccounts(ctx context.Context, token string) ([]domain.Account, error)
	Account(ctx context.Context, token string, accountID domain.ID) (*domain.Account, error)
	CreateAccount(ctx context.Context, token string, req domain.CreateAccountRequest) (*domain.Account, error)
	InitiateTransfer(ctx context.Context, token string, req domain.TransferRequest) (*domain.TransferInitiation, error)
	VerifyOTP(ctx context.Context, token string, req domain.VerifyOTPRequest) (*domain.TransferReceipt, error)
	TransferHistory(ctx context.Context, token string, accountID domain.ID) ([]domain.Transfer, error)
	User(ctx context.Context, token string, userID domain.ID) (*domain.User, error)
	UpdateUser(ctx context.Context, token string, userID domain.ID, req domain.UpdateUserRequest) (*domain.User, error)
	Health(ctx context.Context) bool
}
