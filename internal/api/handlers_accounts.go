package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/transfa/portal-service/internal/app"
	"github.com/transfa/portal-service/internal/domain"
)

const (
	msgAccountCreated = "Account created successfully!"
	msgProfileUpdated = "Profile updated successfully!"
)

type accountsView struct {
	Page  app.AccountsPage `json:"page"`
	Type  string           `json:"type,omitempty"`
	Query string           `json:"query,omitempty"`
}

type accountDetailView struct {
	Account      *domain.Account   `json:"account"`
	History      []domain.Transfer `json:"history"`
	HistoryError string            `json:"history_error,omitempty"`
}

type newAccountView struct {
	Form app.CreateAccountForm `json:"form"`
}

type profileView struct {
	UserID      domain.ID `json:"userId"`
	UserName    string    `json:"userName"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
}

func newProfileView(user domain.User) profileView {
	return profileView{UserID: user.UserID, UserName: user.UserName, PhoneNumber: user.PhoneNumber}
}

func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.accounts.Dashboard(r.Context(), h.sid(r), h.user(r))
	if err != nil {
		h.fail(w, r, h.page(r, "dashboard", "Dashboard", app.DashboardPage{}), err)
		return
	}
	h.presenter.Render(w, r, http.StatusOK, h.page(r, "dashboard", "Dashboard", dashboard))
}

// Accounts lists the user's accounts. With a type or q parameter the stored
// snapshot is filtered instead of fetched again.
func (h *Handlers) Accounts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	view := accountsView{Type: strings.TrimSpace(query.Get("type")), Query: strings.TrimSpace(query.Get("q"))}

	var err error
	switch {
	case view.Query != "":
		view.Page, err = h.accounts.SearchAccounts(r.Context(), h.sid(r), view.Query)
	case view.Type != "":
		view.Page, err = h.accounts.FilterAccountsByType(r.Context(), h.sid(r), view.Type)
	default:
		view.Page, err = h.accounts.LoadUserAccounts(r.Context(), h.sid(r), h.user(r))
	}

	page := h.page(r, "accounts", "My Accounts", view)
	if err != nil {
		h.fail(w, r, page, err)
		return
	}
	if query.Get("created") == "1" {
		page.Alert = successAlert(msgAccountCreated)
	}
	h.presenter.Render(w, r, http.StatusOK, page)
}

func (h *Handlers) NewAccountPage(w http.ResponseWriter, r *http.Request) {
	h.presenter.Render(w, r, http.StatusOK, h.page(r, "new_account", "Open Account", newAccountView{}))
}

func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		h.fail(w, r, h.page(r, "new_account", "Open Account", newAccountView{}), &app.ValidationError{Messages: []string{err.Error()}})
		return
	}
	form := app.CreateAccountForm{
		AccountName:    values.Get("accountName"),
		AccountType:    values.Get("accountType"),
		AccountNumber:  values.Get("accountNumber"),
		InitialBalance: values.Get("initialBalance"),
	}

	account, err := h.accounts.CreateAccount(r.Context(), h.sid(r), h.user(r), form)
	if err != nil {
		h.fail(w, r, h.page(r, "new_account", "Open Account", newAccountView{Form: form}), err)
		return
	}
	h.presenter.Redirect(w, r, "/accounts?created=1", account)
}

// AccountDetails shows one account with its transfer history. A failed history
// load is reported inline.
func (h *Handlers) AccountDetails(w http.ResponseWriter, r *http.Request) {
	accountID := domain.ID(chi.URLParam(r, "accountID"))
	user := h.user(r)

	account, err := h.accounts.AccountDetails(r.Context(), h.sid(r), user, accountID)
	if err != nil {
		h.fail(w, r, h.page(r, "account", "Account Details", accountDetailView{}), err)
		return
	}

	view := accountDetailView{Account: account, History: []domain.Transfer{}}
	history, err := h.accounts.TransferHistory(r.Context(), h.sid(r), user, accountID)
	switch {
	case err == nil:
		if history != nil {
			view.History = history
		}
	case app.RequiresLogout(err):
		h.forceLogout(w, r)
		return
	default:
		view.HistoryError = app.UserMessage(err)
	}
	h.presenter.Render(w, r, http.StatusOK, h.page(r, "account", account.AccountName, view))
}

// SelectForTransfer starts a transfer from the chosen account.
func (h *Handlers) SelectForTransfer(w http.ResponseWriter, r *http.Request) {
	accountID := domain.ID(chi.URLParam(r, "accountID"))
	if err := h.accounts.SelectForTransfer(r.Context(), h.sid(r), accountID); err != nil {
		h.fail(w, r, h.page(r, "error", "Error", nil), err)
		return
	}
	h.presenter.Redirect(w, r, transferPath, map[string]domain.ID{"selectedFromAccount": accountID})
}

func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	profile, err := h.accounts.Profile(r.Context(), user)
	if err != nil {
		h.fail(w, r, h.page(r, "profile", "Profile", newProfileView(user)), err)
		return
	}
	if profile.UserID == "" {
		profile.UserID = user.UserID
	}
	h.presenter.Render(w, r, http.StatusOK, h.page(r, "profile", "Profile", newProfileView(*profile)))
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := h.user(r)
	values, err := formValues(w, r)
	if err != nil {
		h.fail(w, r, h.page(r, "profile", "Profile", newProfileView(user)), &app.ValidationError{Messages: []string{err.Error()}})
		return
	}
	form := app.ProfileForm{UserName: values.Get("userName"), PhoneNumber: values.Get("phoneNumber")}

	updated, err := h.accounts.UpdateProfile(r.Context(), user, form)
	if err != nil {
		h.fail(w, r, h.page(r, "profile", "Profile", newProfileView(user)), err)
		return
	}
	if err := h.sessions.ReplaceUser(r.Context(), h.sid(r), *updated); err != nil {
		h.fail(w, r, h.page(r, "profile", "Profile", newProfileView(user)), err)
		return
	}

	page := h.page(r, "profile", "Profile", newProfileView(*updated))
	page.Navbar = app.NavbarFor(updated)
	page.Alert = successAlert(msgProfileUpdated)
	h.presenter.Render(w, r, http.StatusOK, page)
}
