/**
 * @description
 * Client-side form validation. Every check here is advisory: balances come from a
 * possibly stale snapshot and the banking API re-validates everything.
 */

package app

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/transfa/portal-service/internal/domain"
)

var (
	MinTransferAmount = decimal.RequireFromString("0.01")
	MaxTransferAmount = decimal.NewFromInt(10000)

	feeFreeBelow = decimal.NewFromInt(100)
	feeRate      = decimal.RequireFromString("0.001")
	feeCap       = decimal.NewFromInt(5)

	phonePattern         = regexp.MustCompile(`^[\d\-\+\(\)\s]+$`)
	otpPattern           = regexp.MustCompile(`^\d{6}$`)
	accountNumberPattern = regexp.MustCompile(`^\d{10,16}$`)
)

// TransferForm is the raw transfer form as submitted by the browser.
type TransferForm struct {
	FromAccount  string `json:"fromAccount"`
	ToAccount    string `json:"toAccount"`
	Amount       string `json:"amount"`
	TransferMode string `json:"transferMode"`
	Description  string `json:"description"`
}

// ParseTransferForm converts the raw form into a request. An unparsable amount
// becomes zero and an unknown mode is reported through ok.
func ParseTransferForm(form TransferForm) (req domain.TransferRequest, modeOK bool) {
	amount, err := decimal.NewFromString(strings.TrimSpace(form.Amount))
	if err != nil {
		amount = decimal.Zero
	}
	mode, modeOK := domain.ParseTransferMode(form.TransferMode)
	if !modeOK {
		mode = domain.TransferModeNEFT
	}
	return domain.TransferRequest{
		FromAccount:  domain.ID(strings.TrimSpace(form.FromAccount)),
		ToAccount:    domain.ID(strings.TrimSpace(form.ToAccount)),
		Amount:       amount,
		TransferMode: mode,
		Description:  strings.TrimSpace(form.Description),
	}, modeOK
}

// ValidateTransfer runs every transfer rule and returns all failures in a fixed
// order. sourceAccounts is the user's account snapshot used for the balance check.
func ValidateTransfer(req domain.TransferRequest, sourceAccounts []domain.Account) []string {
	var errs []string

	if req.FromAccount == "" {
		errs = append(errs, "Please select a source account")
	}
	if req.ToAccount == "" {
		errs = append(errs, "Please select a destination account")
	}
	if !req.Amount.IsPositive() {
		errs = append(errs, "Please enter a valid amount")
	}
	if req.FromAccount != "" && req.ToAccount != "" && req.FromAccount == req.ToAccount {
		errs = append(errs, "Source and destination accounts must be different")
	}
	if req.FromAccount != "" && !req.Amount.IsZero() {
		if source, ok := domain.FindAccount(sourceAccounts, req.FromAccount); ok && source.Balance.LessThan(req.Amount) {
			errs = append(errs, "Insufficient balance. Available: "+FormatCurrency(source.Balance))
		}
	}
	if !req.Amount.IsZero() && req.Amount.LessThan(MinTransferAmount) {
		errs = append(errs, "Minimum transfer amount is $0.01")
	}
	if req.Amount.GreaterThan(MaxTransferAmount) {
		errs = append(errs, "Maximum transfer amount is $10,000")
	}
	return errs
}

// CalculateFee is 0.1% capped at $5 between accounts of different types. Amounts
// below $100 are free.
func CalculateFee(amount decimal.Decimal, fromType, toType string) decimal.Decimal {
	if amount.LessThan(feeFreeBelow) || fromType == toType {
		return decimal.Zero
	}
	return decimal.Min(amount.Mul(feeRate), feeCap)
}

// PreviewTransfer computes the fee preview. It reports false until both accounts
// and a positive amount are known.
func PreviewTransfer(req domain.TransferRequest, sourceAccounts, directory []domain.Account) (domain.FeePreview, bool) {
	if req.FromAccount == "" || req.ToAccount == "" || !req.Amount.IsPositive() {
		return domain.FeePreview{}, false
	}
	from, ok := domain.FindAccount(sourceAccounts, req.FromAccount)
	if !ok {
		return domain.FeePreview{}, false
	}
	to, ok := domain.FindAccount(directory, req.ToAccount)
	if !ok {
		return domain.FeePreview{}, false
	}
	fee := CalculateFee(req.Amount, from.AccountType, to.AccountType)
	return domain.FeePreview{Amount: req.Amount, Fee: fee, Total: req.Amount.Add(fee)}, true
}

// ValidateOTP checks the shape of a one-time code.
func ValidateOTP(code string) error {
	if !otpPattern.MatchString(strings.TrimSpace(code)) {
		return &ValidationError{Messages: []string{"Please enter a valid 6-digit OTP"}}
	}
	return nil
}

// LoginForm is the submitted login form.
type LoginForm struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
	Remember    bool   `json:"rememberMe"`
}

// ValidateLogin checks the required login fields.
func ValidateLogin(form LoginForm) []string {
	var errs []string
	if strings.TrimSpace(form.PhoneNumber) == "" {
		errs = append(errs, "Phone Number is required")
	}
	if strings.TrimSpace(form.Password) == "" {
		errs = append(errs, "Password is required")
	}
	return errs
}

// RegisterForm is the submitted registration form.
type RegisterForm struct {
	Name            string `json:"name"`
	PhoneNumber     string `json:"phoneNumber"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ValidateRegistration checks the registration form. All failures are reported.
func ValidateRegistration(form RegisterForm) []string {
	var errs []string

	name := strings.TrimSpace(form.Name)
	switch {
	case name == "":
		errs = append(errs, "Full Name is required")
	case utf8.RuneCountInString(name) < 2:
		errs = append(errs, "Full Name must be at least 2 characters")
	}

	switch {
	case strings.TrimSpace(form.PhoneNumber) == "":
		errs = append(errs, "Phone Number is required")
	case !phonePattern.MatchString(form.PhoneNumber):
		errs = append(errs, "Please enter a valid phone number")
	}

	if strings.TrimSpace(form.Password) == "" {
		errs = append(errs, "Password is required")
	}
	if strings.TrimSpace(form.ConfirmPassword) == "" {
		errs = append(errs, "Confirm Password is required")
	}
	if form.Password != form.ConfirmPassword {
		errs = append(errs, "Passwords do not match")
	}
	return errs
}

// CreateAccountForm is the submitted new-account form.
type CreateAccountForm struct {
	AccountName    string `json:"accountName"`
	AccountType    string `json:"accountType"`
	AccountNumber  string `json:"accountNumber"`
	InitialBalance string `json:"initialBalance"`
}

// ValidateCreateAccount checks the new-account form and returns the parsed
// opening balance.
func ValidateCreateAccount(form CreateAccountForm) (decimal.Decimal, []string) {
	var errs []string

	name := strings.TrimSpace(form.AccountName)
	switch {
	case name == "":
		errs = append(errs, "Account Name is required")
	case utf8.RuneCountInString(name) < 2:
		errs = append(errs, "Account Name must be at least 2 characters")
	}
	if strings.TrimSpace(form.AccountType) == "" {
		errs = append(errs, "Account Type is required")
	}
	if number := strings.TrimSpace(form.AccountNumber); number != "" && !accountNumberPattern.MatchString(number) {
		errs = append(errs, "Account Number must be 10-16 digits")
	}

	balance := decimal.Zero
	if raw := strings.TrimSpace(form.InitialBalance); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		switch {
		case err != nil:
			errs = append(errs, "Please enter a valid initial balance")
		case parsed.IsNegative():
			errs = append(errs, "Initial balance cannot be negative")
		default:
			balance = parsed
		}
	}
	return balance, errs
}

var (
	lowercaseLetters  = regexp.MustCompile(`[a-z]`)
	uppercaseLetters  = regexp.MustCompile(`[A-Z]`)
	digits            = regexp.MustCompile(`\d`)
	specialCharacters = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
)

// CheckPasswordStrength scores a password from 0 to 5 and suggests improvements.
func CheckPasswordStrength(password string) domain.PasswordStrength {
	checks := []struct {
		passed     bool
		suggestion string
	}{
		{utf8.RuneCountInString(password) >= 8, "Use at least 8 characters"},
		{lowercaseLetters.MatchString(password), "Include lowercase letters"},
		{uppercaseLetters.MatchString(password), "Include uppercase letters"},
		{digits.MatchString(password), "Include numbers"},
		{specialCharacters.MatchString(password), "Include special characters"},
	}

	strength := domain.PasswordStrength{}
	for _, check := range checks {
		if check.passed {
			strength.Score++
		} else {
			strength.Suggestions = append(strength.Suggestions, check.suggestion)
		}
	}
	switch {
	case strength.Score < 2:
		strength.Level = "weak"
	case strength.Score < 4:
		strength.Level = "medium"
	default:
		strength.Level = "strong"
	}
	return strength
}
