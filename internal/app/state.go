package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/transfa/portal-service/internal/domain"
	"github.com/transfa/portal-service/internal/store"
)

// AppState is the per-session application state. User is owned by the
// SessionController; UserAccounts and Directory are owned by the loaders that
// fetch them.
type AppState struct {
	User         *domain.User
	UserAccounts []domain.Account
	Directory    []domain.Account
}

// LoadState reads the session's application state. Missing fields stay empty.
func LoadState(ctx context.Context, sessions store.SessionStore, sid string) (AppState, error) {
	var state AppState

	var user domain.User
	switch err := sessions.Get(ctx, sid, domain.KeyUserData, &user); {
	case err == nil:
		state.User = &user
	case !errors.Is(err, store.ErrNotFound):
		return state, fmt.Errorf("failed to load session user: %w", err)
	}

	accounts, err := readAccounts(ctx, sessions, sid, domain.KeyUserAccounts)
	if err != nil {
		return state, err
	}
	state.UserAccounts = accounts

	directory, err := readAccounts(ctx, sessions, sid, domain.KeyDirectory)
	if err != nil {
		return state, err
	}
	state.Directory = directory
	return state, nil
}

func readAccounts(ctx context.Context, sessions store.SessionStore, sid, key string) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := sessions.Get(ctx, sid, key, &accounts); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return accounts, nil
}
