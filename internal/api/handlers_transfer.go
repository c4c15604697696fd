/**
 * @description
 * Handlers for the transfer pages: the transfer form, the OTP confirmation page
 * and the completion page.
 */

package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/transfa/portal-service/internal/app"
	"github.com/transfa/portal-service/internal/domain"
	"github.com/transfa/portal-service/internal/store"
)

const (
	transferPath        = "/transfer"
	transferConfirmPath = "/transfer/confirm"
	transferSuccessPath = "/transfer/success"
)

type transferStatus struct {
	State domain.TransferState `json:"state"`
	Busy  bool                 `json:"busy"`
}

func transferFormFrom(values url.Values) app.TransferForm {
	return app.TransferForm{
		FromAccount:  values.Get("fromAccount"),
		ToAccount:    values.Get("toAccount"),
		Amount:       values.Get("amount"),
		TransferMode: values.Get("transferMode"),
		Description:  values.Get("description"),
	}
}

func (h *Handlers) TransferPage(w http.ResponseWriter, r *http.Request) {
	transferPage, err := h.transfers.Begin(r.Context(), h.sid(r), h.user(r))
	if err != nil {
		h.fail(w, r, h.page(r, "transfer", "Transfer Funds", &app.TransferPage{}), err)
		return
	}
	h.presenter.Render(w, r, http.StatusOK, h.page(r, "transfer", "Transfer Funds", transferPage))
}

// ValidateTransfer previews the fee and reports validation errors without
// submitting.
func (h *Handlers) ValidateTransfer(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		h.fail(w, r, h.page(r, "transfer", "Transfer Funds", &app.TransferPage{}), &app.ValidationError{Messages: []string{err.Error()}})
		return
	}
	form := transferFormFrom(values)

	transferPage, err := h.transfers.Validate(r.Context(), h.sid(r), form)
	if err != nil {
		h.fail(w, r, h.page(r, "transfer", "Transfer Funds", &app.TransferPage{Form: form}), err)
		return
	}
	page := h.page(r, "transfer", "Transfer Funds", transferPage)
	if len(transferPage.Errors) > 0 {
		page.Alert = errorAlert(transferPage.Errors...)
	}
	h.presenter.Render(w, r, http.StatusOK, page)
}

// SubmitTransfer requests the transfer and moves on to the OTP step. A form
// with validation errors is re-rendered without contacting the banking API.
func (h *Handlers) SubmitTransfer(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		h.fail(w, r, h.page(r, "transfer", "Transfer Funds", &app.TransferPage{}), &app.ValidationError{Messages: []string{err.Error()}})
		return
	}
	form := transferFormFrom(values)

	if _, err := h.transfers.Submit(r.Context(), h.sid(r), h.user(r), form); err != nil {
		transferPage, pageErr := h.transfers.Validate(r.Context(), h.sid(r), form)
		if pageErr != nil {
			transferPage = &app.TransferPage{Form: form}
		}
		h.fail(w, r, h.page(r, "transfer", "Transfer Funds", transferPage), err)
		return
	}

	view, err := h.transfers.Confirmation(r.Context(), h.sid(r))
	if err != nil {
		h.fail(w, r, h.page(r, "error", "Error", nil), err)
		return
	}
	h.presenter.Redirect(w, r, transferConfirmPath, view)
}

func (h *Handlers) ConfirmationPage(w http.ResponseWriter, r *http.Request) {
	view, err := h.transfers.Confirmation(r.Context(), h.sid(r))
	if err != nil {
		h.fail(w, r, h.page(r, "confirm", "Confirm Transfer", app.ConfirmationView{}), err)
		return
	}
	page := h.page(r, "confirm", "Confirm Transfer", view)
	if !view.Pending {
		page.Alert = warningAlert(app.MsgNoPendingTransfer)
	}
	h.presenter.Render(w, r, http.StatusOK, page)
}

// ConfirmTransfer verifies the OTP. On failure the confirmation page is shown
// again with the pending transfer intact.
func (h *Handlers) ConfirmTransfer(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		h.fail(w, r, h.page(r, "confirm", "Confirm Transfer", app.ConfirmationView{}), &app.ValidationError{Messages: []string{err.Error()}})
		return
	}

	receipt, err := h.transfers.Confirm(r.Context(), h.sid(r), h.user(r), values.Get("otp"))
	if err != nil {
		view, viewErr := h.transfers.Confirmation(r.Context(), h.sid(r))
		if viewErr != nil {
			view = app.ConfirmationView{}
		}
		h.fail(w, r, h.page(r, "confirm", "Confirm Transfer", view), err)
		return
	}
	h.presenter.Redirect(w, r, transferSuccessPath, receipt)
}

func (h *Handlers) TransferSuccess(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.transfers.Receipt(r.Context(), h.sid(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.presenter.Redirect(w, r, transferPath, nil)
			return
		}
		h.fail(w, r, h.page(r, "error", "Error", nil), err)
		return
	}
	page := h.page(r, "success", "Transfer Successful", receipt)
	page.Alert = successAlert("Transfer completed successfully!")
	h.presenter.Render(w, r, http.StatusOK, page)
}

// TransferStatus reports the workflow state and whether a request is in flight.
func (h *Handlers) TransferStatus(w http.ResponseWriter, r *http.Request) {
	status := transferStatus{
		State: h.transfers.State(r.Context(), h.sid(r)),
		Busy:  h.transfers.Busy(h.sid(r)),
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: status})
}
