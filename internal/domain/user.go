package domain

import "time"

// User is the authenticated principal held in the session. It is written on login
// and cleared on logout or inactivity timeout.
type User struct {
	UserID      ID     `json:"userId"`
	UserName    string `json:"userName"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Token       string `json:"token,omitempty"`
}

// LoginRequest is the credential payload for the banking API login endpoint.
type LoginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

// RegisterRequest is the payload for the banking API registration endpoint.
type RegisterRequest struct {
	UserName    string `json:"userName"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

// UpdateUserRequest carries the profile fields a user may change.
type UpdateUserRequest struct {
	UserName    string `json:"userName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// RememberedLogin is a long-lived "remember me" credential. Only a hash of the
// validator half of the browser token is kept.
type RememberedLogin struct {
	Selector      string    `json:"selector"`
	ValidatorHash string    `json:"validator_hash"`
	// User never carries the bearer token; it is kept in SealedToken, which
	// only the holder of the validator can open.
	User          User      `json:"user"`
	SealedToken   []byte    `json:"sealed_token,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Expired reports whether the credential is no longer usable at now.
func (r RememberedLogin) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// PasswordStrength is the result of a password strength check.
type PasswordStrength struct {
	Score       int      `json:"score"`
	Level       string   `json:"level"`
	Suggestions []string `json:"suggestions,omitempty"`
}
