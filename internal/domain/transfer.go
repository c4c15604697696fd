/**
 * @description
 * This file defines the data models for the two-step funds transfer: the request the
 * user submits, the confirmation snapshot kept while an OTP is outstanding, and the
 * receipt echoed back once the OTP is verified.
 *
 * @notes
 * - The banking API owns the authoritative transfer state. The portal only keeps the
 *   confirmation snapshot between the request and OTP steps.
 */

package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Session storage keys. These names are shared with the browser contract and must
// stay stable.
const (
	KeyUserData            = "userData"
	KeyTransferData        = "transferData"
	KeySelectedFromAccount = "selectedFromAccount"
	KeyUserAccounts        = "userAccounts"
	KeyDirectory           = "directoryAccounts"
	KeyTransferState       = "transferState"
	KeyTransferReceipt     = "transferReceipt"
	KeySessionExpiring     = "sessionExpiring"
	KeyLastActivity        = "lastActivity"
)

// TransferMode is the settlement rail requested for a transfer.
type TransferMode string

const (
	TransferModeNEFT TransferMode = "NEFT"
	TransferModeRTGS TransferMode = "RTGS"
	TransferModeIMPS TransferMode = "IMPS"
)

// ParseTransferMode normalizes a user-supplied mode. Empty input defaults to NEFT.
func ParseTransferMode(raw string) (TransferMode, bool) {
	switch TransferMode(strings.ToUpper(strings.TrimSpace(raw))) {
	case "":
		return TransferModeNEFT, true
	case TransferModeNEFT:
		return TransferModeNEFT, true
	case TransferModeRTGS:
		return TransferModeRTGS, true
	case TransferModeIMPS:
		return TransferModeIMPS, true
	default:
		return "", false
	}
}

// TransferState is the position of a session in the transfer workflow.
type TransferState string

const (
	TransferStateSelecting   TransferState = "selecting"
	TransferStateValidating  TransferState = "validating"
	TransferStateAwaitingOTP TransferState = "awaiting_otp"
	TransferStateCompleted   TransferState = "completed"
	TransferStateFailed      TransferState = "failed"
)

// TransferRequest is what the user submits from the transfer form.
type TransferRequest struct {
	FromAccount  ID              `json:"fromAccount"`
	ToAccount    ID              `json:"toAccount"`
	Amount       decimal.Decimal `json:"amount"`
	TransferMode TransferMode    `json:"transferMode"`
	Description  string          `json:"description,omitempty"`
}

// TransferInitiation is the banking API's answer to a transfer request.
type TransferInitiation struct {
	TransferID ID     `json:"transferId,omitempty"`
	OTP        string `json:"otp,omitempty"`
	Message    string `json:"message,omitempty"`
}

// TransferConfirmation is the snapshot stored under KeyTransferData while the OTP
// is outstanding.
type TransferConfirmation struct {
	TransferRequest
	TransferID        ID     `json:"transferId,omitempty"`
	OTP               string `json:"otp,omitempty"`
	FromAccountName   string `json:"fromAccountName"`
	FromAccountNumber string `json:"fromAccountNumber"`
	ToAccountName     string `json:"toAccountName"`
	ToAccountNumber   string `json:"toAccountNumber"`
}

// VerifyOTPRequest is sent to the banking API to complete a transfer.
type VerifyOTPRequest struct {
	FromAccount  ID              `json:"fromAccount"`
	ToAccount    ID              `json:"toAccount"`
	Amount       decimal.Decimal `json:"amount"`
	TransferMode TransferMode    `json:"transferMode"`
	Description  string          `json:"description,omitempty"`
	OTP          string          `json:"otp"`
}

// TransferReceipt is the server-echoed result of a verified transfer.
type TransferReceipt struct {
	TransferID   ID              `json:"transferId,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	TransferMode TransferMode    `json:"transferMode"`
	Status       string          `json:"status,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// Transfer is a historical transfer record.
type Transfer struct {
	TransferID   ID              `json:"transferId"`
	FromAccount  ID              `json:"fromAccount"`
	ToAccount    ID              `json:"toAccount"`
	Amount       decimal.Decimal `json:"amount"`
	TransferMode TransferMode    `json:"transferMode,omitempty"`
	Status       string          `json:"status,omitempty"`
	Description  string          `json:"description,omitempty"`
	CreatedDate  string          `json:"createdDate,omitempty"`
}

// FeePreview is the advisory fee shown before submission.
type FeePreview struct {
	Amount decimal.Decimal `json:"amount"`
	Fee    decimal.Decimal `json:"fee"`
	Total  decimal.Decimal `json:"total"`
}
