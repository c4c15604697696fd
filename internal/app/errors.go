package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/transfa/portal-service/pkg/bankclient"
)

// User-facing messages for API failures.
const (
	MsgNetworkUnavailable = "Unable to connect to the server. Please check your internet connection."
	MsgSessionExpired     = "Your session has expired. Please log in again."
	MsgForbidden          = "You do not have permission to perform this action."
	MsgNotFound           = "The requested resource was not found."
	MsgServerError        = "Server error. Please try again later."
	MsgUnexpected         = "An unexpected error occurred. Please try again."
	MsgTransferInFlight   = "A request is already being processed. Please wait."
	MsgNoPendingTransfer  = "No pending transfer found. Please start a new transfer."
)

var (
	ErrNotAuthenticated  = errors.New("user not authenticated")
	ErrTransferInFlight  = errors.New("transfer request already in flight")
	ErrNoPendingTransfer = errors.New("no pending transfer")
	ErrAccountNotFound   = errors.New("account not found")
)

// ValidationError carries every failed rule of a form. It blocks submission.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func newValidationError(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

// RateLimitError is returned when a login subject exceeded its attempt budget.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Too many login attempts. Please try again in %d seconds.", e.RetryAfterSeconds)
}

// UserMessages maps err to the messages shown in a page's alert region.
func UserMessages(err error) []string {
	if err == nil {
		return nil
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Messages
	}
	return []string{UserMessage(err)}
}

// UserMessage maps err to a single user-facing message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		validationErr *ValidationError
		rateErr       *RateLimitError
		httpErr       *bankclient.HTTPError
	)
	switch {
	case errors.As(err, &validationErr):
		return strings.Join(validationErr.Messages, "\n")
	case errors.As(err, &rateErr):
		return rateErr.Error()
	case errors.Is(err, bankclient.ErrNetworkUnavailable):
		return MsgNetworkUnavailable
	case errors.Is(err, ErrNotAuthenticated):
		return MsgSessionExpired
	case errors.Is(err, ErrTransferInFlight):
		return MsgTransferInFlight
	case errors.Is(err, ErrNoPendingTransfer):
		return MsgNoPendingTransfer
	case errors.Is(err, ErrAccountNotFound):
		return MsgNotFound
	case errors.As(err, &httpErr):
		switch httpErr.StatusCode {
		case http.StatusUnauthorized:
			return MsgSessionExpired
		case http.StatusForbidden:
			return MsgForbidden
		case http.StatusNotFound:
			return MsgNotFound
		case http.StatusInternalServerError:
			return MsgServerError
		}
		return httpErr.Error()
	}
	return MsgUnexpected
}

// RequiresLogout reports whether err means the remote session is gone.
func RequiresLogout(err error) bool {
	var httpErr *bankclient.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusUnauthorized
	}
	return errors.Is(err, ErrNotAuthenticated)
}
