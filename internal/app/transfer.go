/**
 * @description
 * This file contains the TransferWorkflow, the two-step funds transfer state
 * machine: Selecting -> Validating -> AwaitingOTP -> Completed. A failure never
 * advances the state; the session stays in the step that failed.
 *
 * Key features:
 * - Source and destination lists load concurrently; one failing list does not
 *   hide the other.
 * - Submission with validation errors makes no network call.
 * - The confirmation snapshot survives OTP failures and is deleted on success.
 * - Concurrent submissions for the same session are rejected while one is in flight.
 *
 * @dependencies
 * - pkg/bankclient: Batch fan-out for the account lists.
 * - pkg/rabbitmq: transfer audit events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/transfa/portal-service/internal/domain"
	"github.com/transfa/portal-service/internal/store"
	"github.com/transfa/portal-service/pkg/bankclient"
	"github.com/transfa/portal-service/pkg/rabbitmq"
)

const placeholder = "-"

// TransferPage is the model of the transfer form.
type TransferPage struct {
	State           domain.TransferState `json:"state"`
	FromAccounts    []domain.Account     `json:"from_accounts"`
	ToAccounts      []domain.Account     `json:"to_accounts"`
	FromError       string               `json:"from_error,omitempty"`
	ToError         string               `json:"to_error,omitempty"`
	PreselectedFrom domain.ID            `json:"preselected_from,omitempty"`
	Form            TransferForm         `json:"form"`
	Errors          []string             `json:"errors,omitempty"`
	Preview         *domain.FeePreview   `json:"preview,omitempty"`
}

// transferCheck is the result of validating a transfer form.
type transferCheck struct {
	Request domain.TransferRequest `json:"request"`
	Errors  []string               `json:"errors,omitempty"`
	Preview *domain.FeePreview     `json:"preview,omitempty"`
}

// ConfirmationView is the model of the OTP confirmation page. Pending is false
// when no confirmation snapshot exists; the fields then hold placeholders.
type ConfirmationView struct {
	Pending           bool   `json:"pending"`
	FromAccountName   string `json:"from_account_name"`
	FromAccountNumber string `json:"from_account_number"`
	ToAccountName     string `json:"to_account_name"`
	ToAccountNumber   string `json:"to_account_number"`
	Amount            string `json:"amount"`
	TransferMode      string `json:"transfer_mode"`
	Description       string `json:"description,omitempty"`
	DemoOTP           string `json:"demo_otp,omitempty"`
}

// TransferOptions tunes a TransferWorkflow.
type TransferOptions struct {
	// ShowDemoOTP displays the OTP returned by the banking API on the
	// confirmation page. Only meaningful against the demo banking API.
	ShowDemoOTP bool
}

// TransferWorkflow drives the transfer pages of each session.
type TransferWorkflow struct {
	bank      BankAPI
	sessions  store.SessionStore
	publisher rabbitmq.Publisher
	clock     Clock
	opts      TransferOptions

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewTransferWorkflow(bank BankAPI, sessions store.SessionStore, publisher rabbitmq.Publisher, clock Clock, opts TransferOptions) *TransferWorkflow {
	if clock == nil {
		clock = SystemClock
	}
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{}
	}
	return &TransferWorkflow{
		bank:      bank,
		sessions:  sessions,
		publisher: publisher,
		clock:     clock,
		opts:      opts,
		inFlight:  make(map[string]struct{}),
	}
}

// acquire marks sid busy. It fails when a request of sid is already running.
func (w *TransferWorkflow) acquire(sid string) (release func(), err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inFlight[sid]; busy {
		return nil, ErrTransferInFlight
	}
	w.inFlight[sid] = struct{}{}
	return func() {
		w.mu.Lock()
		delete(w.inFlight, sid)
		w.mu.Unlock()
	}, nil
}

// Busy reports whether sid has a transfer request in flight.
func (w *TransferWorkflow) Busy(sid string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, busy := w.inFlight[sid]
	return busy
}

// State returns the session's position in the workflow.
func (w *TransferWorkflow) State(ctx context.Context, sid string) domain.TransferState {
	var state domain.TransferState
	if err := w.sessions.Get(ctx, sid, domain.KeyTransferState, &state); err != nil || state == "" {
		return domain.TransferStateSelecting
	}
	return state
}

func (w *TransferWorkflow) setState(ctx context.Context, sid string, state domain.TransferState) {
	if err := w.sessions.Set(ctx, sid, domain.KeyTransferState, state); err != nil {
		log.Printf("level=warn component=transfer msg=\"transfer state store failed\" state=%s err=%v", state, err)
	}
}

// Begin loads the source and destination lists and consumes the pre-selection
// hint. Starting a new transfer discards any stale confirmation.
func (w *TransferWorkflow) Begin(ctx context.Context, sid string, user domain.User) (*TransferPage, error) {
	outcomes := bankclient.Batch(ctx,
		func(ctx context.Context) ([]domain.Account, error) {
			return w.bank.UserAccounts(ctx, user.Token, user.UserID)
		},
		func(ctx context.Context) ([]domain.Account, error) {
			return w.bank.AllAccounts(ctx, user.Token)
		},
	)

	page := &TransferPage{
		State:        domain.TransferStateSelecting,
		FromAccounts: []domain.Account{},
		ToAccounts:   []domain.Account{},
	}

	if own := outcomes[0]; own.Success {
		page.FromAccounts = nonNil(own.Data)
		if err := w.sessions.Set(ctx, sid, domain.KeyUserAccounts, page.FromAccounts); err != nil {
			return nil, err
		}
	} else {
		if RequiresLogout(own.Err) {
			return nil, own.Err
		}
		log.Printf("level=warn component=transfer msg=\"source accounts load failed\" user_id=%s err=%v", user.UserID, own.Err)
		page.FromError = UserMessage(own.Err)
		if cached, err := readAccounts(ctx, w.sessions, sid, domain.KeyUserAccounts); err == nil && cached != nil {
			page.FromAccounts = cached
		}
	}

	if directory := outcomes[1]; directory.Success {
		page.ToAccounts = nonNil(directory.Data)
		if err := w.sessions.Set(ctx, sid, domain.KeyDirectory, page.ToAccounts); err != nil {
			return nil, err
		}
	} else {
		if RequiresLogout(directory.Err) {
			return nil, directory.Err
		}
		log.Printf("level=warn component=transfer msg=\"destination accounts load failed\" user_id=%s err=%v", user.UserID, directory.Err)
		page.ToError = UserMessage(directory.Err)
		if cached, err := readAccounts(ctx, w.sessions, sid, domain.KeyDirectory); err == nil && cached != nil {
			page.ToAccounts = cached
		}
	}

	var hint domain.ID
	if err := w.sessions.Get(ctx, sid, domain.KeySelectedFromAccount, &hint); err == nil {
		_ = w.sessions.Delete(ctx, sid, domain.KeySelectedFromAccount)
		page.PreselectedFrom = hint
		page.Form.FromAccount = hint.String()
	}

	if err := w.sessions.Delete(ctx, sid, domain.KeyTransferData); err != nil {
		log.Printf("level=warn component=transfer msg=\"stale confirmation discard failed\" err=%v", err)
	}
	w.setState(ctx, sid, domain.TransferStateSelecting)
	return page, nil
}

func nonNil(accounts []domain.Account) []domain.Account {
	if accounts == nil {
		return []domain.Account{}
	}
	return accounts
}

// Validate checks a form against the stored snapshots without submitting and
// returns the form page with its errors and fee preview.
func (w *TransferWorkflow) Validate(ctx context.Context, sid string, form TransferForm) (*TransferPage, error) {
	state, err := LoadState(ctx, w.sessions, sid)
	if err != nil {
		return nil, err
	}
	result := check(form, state.UserAccounts, state.Directory)
	return &TransferPage{
		State:        w.State(ctx, sid),
		FromAccounts: nonNil(state.UserAccounts),
		ToAccounts:   nonNil(state.Directory),
		Form:         form,
		Errors:       result.Errors,
		Preview:      result.Preview,
	}, nil
}

func check(form TransferForm, userAccounts, directory []domain.Account) transferCheck {
	req, modeOK := ParseTransferForm(form)
	result := transferCheck{Request: req, Errors: ValidateTransfer(req, userAccounts)}
	if !modeOK {
		result.Errors = append(result.Errors, "Please select a valid transfer mode")
	}
	targets := directory
	if len(targets) == 0 {
		targets = userAccounts
	}
	if preview, ok := PreviewTransfer(req, userAccounts, targets); ok {
		result.Preview = &preview
	}
	return result
}

// Submit validates the form and, when it is clean, requests the transfer. The
// returned confirmation is stored for the OTP step.
func (w *TransferWorkflow) Submit(ctx context.Context, sid string, user domain.User, form TransferForm) (*domain.TransferConfirmation, error) {
	release, err := w.acquire(sid)
	if err != nil {
		return nil, err
	}
	defer release()

	state, err := LoadState(ctx, w.sessions, sid)
	if err != nil {
		return nil, err
	}
	userAccounts := state.UserAccounts
	if userAccounts == nil {
		userAccounts, err = w.bank.UserAccounts(ctx, user.Token, user.UserID)
		if err != nil {
			return nil, err
		}
		_ = w.sessions.Set(ctx, sid, domain.KeyUserAccounts, userAccounts)
	}

	w.setState(ctx, sid, domain.TransferStateValidating)
	result := check(form, userAccounts, state.Directory)
	if err := newValidationError(result.Errors); err != nil {
		w.setState(ctx, sid, domain.TransferStateSelecting)
		return nil, err
	}
	req := result.Request

	initiation, err := w.bank.InitiateTransfer(ctx, user.Token, req)
	if err != nil {
		log.Printf("level=warn component=transfer msg=\"transfer initiation failed\" user_id=%s err=%v", user.UserID, err)
		w.setState(ctx, sid, domain.TransferStateSelecting)
		return nil, err
	}

	confirmation := domain.TransferConfirmation{
		TransferRequest: req,
		TransferID:      initiation.TransferID,
		OTP:             initiation.OTP,
	}
	if from, ok := domain.FindAccount(userAccounts, req.FromAccount); ok {
		confirmation.FromAccountName = from.AccountName
		confirmation.FromAccountNumber = from.AccountNumber
	}
	to, ok := domain.FindAccount(state.Directory, req.ToAccount)
	if !ok {
		to, ok = domain.FindAccount(userAccounts, req.ToAccount)
	}
	if ok {
		confirmation.ToAccountName = to.AccountName
		confirmation.ToAccountNumber = to.AccountNumber
	}

	if err := w.sessions.Set(ctx, sid, domain.KeyTransferData, confirmation); err != nil {
		return nil, fmt.Errorf("failed to store transfer confirmation: %w", err)
	}
	w.setState(ctx, sid, domain.TransferStateAwaitingOTP)

	log.Printf("level=info component=transfer msg=\"transfer initiated; awaiting otp\" user_id=%s transfer_id=%s mode=%s", user.UserID, confirmation.TransferID, req.TransferMode)
	w.publishTransferEvent(ctx, domain.EventTransferInitiated, user, confirmation.TransferRequest, confirmation.TransferID, "pending_otp")
	return &confirmation, nil
}

// Confirmation renders the stored confirmation snapshot, or placeholders when
// there is none.
func (w *TransferWorkflow) Confirmation(ctx context.Context, sid string) (ConfirmationView, error) {
	confirmation, err := w.pending(ctx, sid)
	if err != nil {
		if errors.Is(err, ErrNoPendingTransfer) {
			return placeholderView(), nil
		}
		return ConfirmationView{}, err
	}

	view := ConfirmationView{
		Pending:           true,
		FromAccountName:   orPlaceholder(confirmation.FromAccountName),
		FromAccountNumber: orPlaceholder(FormatAccountNumber(confirmation.FromAccountNumber)),
		ToAccountName:     orPlaceholder(confirmation.ToAccountName),
		ToAccountNumber:   orPlaceholder(FormatAccountNumber(confirmation.ToAccountNumber)),
		Amount:            FormatCurrency(confirmation.Amount),
		TransferMode:      string(modeOrDefault(confirmation.TransferMode)),
		Description:       confirmation.Description,
	}
	if w.opts.ShowDemoOTP {
		view.DemoOTP = confirmation.OTP
	}
	return view, nil
}

func placeholderView() ConfirmationView {
	return ConfirmationView{
		FromAccountName:   placeholder,
		FromAccountNumber: placeholder,
		ToAccountName:     placeholder,
		ToAccountNumber:   placeholder,
		Amount:            placeholder,
		TransferMode:      placeholder,
	}
}

func orPlaceholder(value string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}

func modeOrDefault(mode domain.TransferMode) domain.TransferMode {
	if mode == "" {
		return domain.TransferModeNEFT
	}
	return mode
}

func (w *TransferWorkflow) pending(ctx context.Context, sid string) (*domain.TransferConfirmation, error) {
	var confirmation domain.TransferConfirmation
	if err := w.sessions.Get(ctx, sid, domain.KeyTransferData, &confirmation); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidValue) {
			return nil, ErrNoPendingTransfer
		}
		return nil, err
	}
	return &confirmation, nil
}

// Confirm submits the OTP for the pending transfer. On success the snapshot is
// deleted; on failure it is kept so the user can retry.
func (w *TransferWorkflow) Confirm(ctx context.Context, sid string, user domain.User, code string) (*domain.TransferReceipt, error) {
	if err := ValidateOTP(code); err != nil {
		return nil, err
	}

	release, err := w.acquire(sid)
	if err != nil {
		return nil, err
	}
	defer release()

	confirmation, err := w.pending(ctx, sid)
	if err != nil {
		return nil, err
	}

	receipt, err := w.bank.VerifyOTP(ctx, user.Token, domain.VerifyOTPRequest{
		FromAccount:  confirmation.FromAccount,
		ToAccount:    confirmation.ToAccount,
		Amount:       confirmation.Amount,
		TransferMode: modeOrDefault(confirmation.TransferMode),
		Description:  confirmation.Description,
		OTP:          strings.TrimSpace(code),
	})
	if err != nil {
		log.Printf("level=warn component=transfer msg=\"otp verification failed\" user_id=%s transfer_id=%s err=%v", user.UserID, confirmation.TransferID, err)
		w.setState(ctx, sid, domain.TransferStateAwaitingOTP)
		return nil, err
	}

	if receipt.Amount.IsZero() {
		receipt.Amount = confirmation.Amount
	}
	receipt.TransferMode = modeOrDefault(receipt.TransferMode)
	if receipt.TransferID == "" {
		receipt.TransferID = confirmation.TransferID
	}
	if receipt.Status == "" {
		receipt.Status = "Completed"
	}

	if err := w.sessions.Delete(ctx, sid, domain.KeyTransferData); err != nil {
		return nil, fmt.Errorf("failed to delete transfer confirmation: %w", err)
	}
	if err := w.sessions.Set(ctx, sid, domain.KeyTransferReceipt, receipt); err != nil {
		log.Printf("level=warn component=transfer msg=\"receipt store failed\" err=%v", err)
	}
	// Balances changed; the next page load must re-fetch.
	_ = w.sessions.Delete(ctx, sid, domain.KeyUserAccounts)
	w.setState(ctx, sid, domain.TransferStateCompleted)

	log.Printf("level=info component=transfer msg=\"transfer completed\" user_id=%s transfer_id=%s", user.UserID, receipt.TransferID)
	w.publishTransferEvent(ctx, domain.EventTransferCompleted, user, confirmation.TransferRequest, receipt.TransferID, receipt.Status)
	return receipt, nil
}

// Receipt returns the last completed transfer of the session.
func (w *TransferWorkflow) Receipt(ctx context.Context, sid string) (*domain.TransferReceipt, error) {
	var receipt domain.TransferReceipt
	if err := w.sessions.Get(ctx, sid, domain.KeyTransferReceipt, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (w *TransferWorkflow) publishTransferEvent(ctx context.Context, eventType string, user domain.User, req domain.TransferRequest, transferID domain.ID, status string) {
	event := domain.TransferEvent{
		EventID:      uuid.NewString(),
		UserID:       user.UserID,
		TransferID:   transferID,
		FromAccount:  req.FromAccount,
		ToAccount:    req.ToAccount,
		Amount:       req.Amount.StringFixed(2),
		TransferMode: modeOrDefault(req.TransferMode),
		Status:       status,
		OccurredAt:   w.clock.Now().UTC(),
	}
	if err := w.publisher.PublishTransferEvent(ctx, eventType, event); err != nil {
		log.Printf("level=warn component=transfer msg=\"transfer event publish failed\" event=%s err=%v", eventType, err)
	}
}
