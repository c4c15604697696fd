package domain

import "time"

// Audit event types published to the portal events exchange.
const (
	EventUserLoggedIn      = "user.logged_in"
	EventUserLoggedOut     = "user.logged_out"
	EventSessionExpired    = "session.expired"
	EventTransferInitiated = "transfer.initiated"
	EventTransferCompleted = "transfer.completed"
)

// SessionEvent records a change in a user's session.
type SessionEvent struct {
	EventID    string    `json:"event_id"`
	UserID     ID        `json:"user_id"`
	UserName   string    `json:"user_name,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TransferEvent records progress of a transfer. It never carries the OTP.
type TransferEvent struct {
	EventID      string       `json:"event_id"`
	UserID       ID           `json:"user_id"`
	TransferID   ID           `json:"transfer_id,omitempty"`
	FromAccount  ID           `json:"from_account"`
	ToAccount    ID           `json:"to_account"`
	Amount       string       `json:"amount"`
	TransferMode TransferMode `json:"transfer_mode"`
	Status       string       `json:"status,omitempty"`
	OccurredAt   time.Time    `json:"occurred_at"`
}
