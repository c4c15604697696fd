package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/transfa/portal-service/internal/app"
	"github.com/transfa/portal-service/internal/domain"
	"github.com/transfa/portal-service/pkg/bankclient"
)

const msgRegistrationCreated = "Account created successfully! Please log in."

type loginView struct {
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Remember    bool   `json:"rememberMe"`
}

type registerView struct {
	Name        string                   `json:"name,omitempty"`
	PhoneNumber string                   `json:"phoneNumber,omitempty"`
	Strength    *domain.PasswordStrength `json:"strength,omitempty"`
}

// sessionView is the user as shown to the browser; the bearer token stays
// server-side.
type sessionView struct {
	UserID      domain.ID  `json:"userId"`
	UserName    string     `json:"userName"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	Navbar      app.Navbar `json:"navbar"`
	// SessionToken is set when the session was just opened; API clients send
	// it back as a bearer token.
	SessionToken string `json:"sessionToken,omitempty"`
}

func newSessionView(user domain.User) sessionView {
	return sessionView{
		UserID:      user.UserID,
		UserName:    user.UserName,
		PhoneNumber: user.PhoneNumber,
		Navbar:      app.NavbarFor(&user),
	}
}

// anonymousUser returns the session user, restoring a remembered login first.
func (h *Handlers) anonymousUser(w http.ResponseWriter, r *http.Request) *domain.User {
	user, err := currentOrRemembered(w, r, h.sessions, h.sid(r))
	if err != nil {
		return nil
	}
	return user
}

// Home sends signed-in users to the dashboard and everyone else to login.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	if h.anonymousUser(w, r) != nil {
		h.presenter.Redirect(w, r, dashboardPath, nil)
		return
	}
	h.presenter.Redirect(w, r, loginPath, nil)
}

func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if user := h.anonymousUser(w, r); user != nil {
		h.presenter.Redirect(w, r, dashboardPath, newSessionView(*user))
		return
	}

	page := h.page(r, "login", "Login", loginView{})
	switch {
	case r.URL.Query().Get("expired") == "1", h.sessions.ExpiryNotice(r.Context(), h.sid(r)):
		page.Alert = warningAlert(app.MsgSessionExpired)
	case r.URL.Query().Get("registered") == "1":
		page.Alert = successAlert(msgRegistrationCreated)
	}
	h.presenter.Render(w, r, http.StatusOK, page)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		h.presenter.Render(w, r, http.StatusBadRequest, Page{Name: "login", Title: "Login", Navbar: app.NavbarFor(nil), Data: loginView{}, Alert: errorAlert(err.Error())})
		return
	}
	form := app.LoginForm{
		PhoneNumber: values.Get("phoneNumber"),
		Password:    values.Get("password"),
		Remember:    checked(values, "rememberMe"),
	}
	page := h.page(r, "login", "Login", loginView{PhoneNumber: strings.TrimSpace(form.PhoneNumber), Remember: form.Remember})

	result, err := h.sessions.Login(r.Context(), h.sid(r), form)
	if err != nil {
		// A 401 here means bad credentials, not an expired session.
		var httpErr *bankclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			page.Alert = errorAlert(httpErr.Error())
			h.presenter.Render(w, r, http.StatusUnauthorized, page)
			return
		}
		page.Alert = errorAlert(app.UserMessages(err)...)
		h.presenter.Render(w, r, statusFor(err), page)
		return
	}

	token, err := rotateSession(w, r, result.SessionID)
	if err != nil {
		log.Printf("level=error component=api msg=\"session rotation failed\" err=%v", err)
		h.fail(w, r, page, err)
		return
	}
	if result.RememberToken != "" {
		http.SetCookie(w, h.cookies.rememberCookie(result.RememberToken, result.RememberExpires))
	}
	view := newSessionView(result.User)
	view.SessionToken = token
	h.presenter.Redirect(w, r, dashboardPath, view)
}

func (h *Handlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if user := h.anonymousUser(w, r); user != nil {
		h.presenter.Redirect(w, r, dashboardPath, newSessionView(*user))
		return
	}
	h.presenter.Render(w, r, http.StatusOK, h.page(r, "register", "Register", registerView{}))
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		h.fail(w, r, h.page(r, "register", "Register", registerView{}), &app.ValidationError{Messages: []string{err.Error()}})
		return
	}
	form := app.RegisterForm{
		Name:            values.Get("name"),
		PhoneNumber:     values.Get("phoneNumber"),
		Password:        values.Get("password"),
		ConfirmPassword: values.Get("confirmPassword"),
	}
	view := registerView{Name: strings.TrimSpace(form.Name), PhoneNumber: strings.TrimSpace(form.PhoneNumber)}
	if form.Password != "" {
		strength := app.CheckPasswordStrength(form.Password)
		view.Strength = &strength
	}

	if err := h.sessions.Register(r.Context(), form); err != nil {
		page := h.page(r, "register", "Register", view)
		page.Alert = errorAlert(app.UserMessages(err)...)
		h.presenter.Render(w, r, statusFor(err), page)
		return
	}
	h.presenter.Redirect(w, r, loginPath+"?registered=1", nil)
}

// PasswordStrength scores a candidate password for the registration form.
func (h *Handlers) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		h.fail(w, r, h.page(r, "register", "Register", registerView{}), &app.ValidationError{Messages: []string{err.Error()}})
		return
	}
	strength := app.CheckPasswordStrength(values.Get("password"))
	view := registerView{
		Name:        strings.TrimSpace(values.Get("name")),
		PhoneNumber: strings.TrimSpace(values.Get("phoneNumber")),
		Strength:    &strength,
	}
	h.presenter.Render(w, r, http.StatusOK, h.page(r, "register", "Register", view))
}

// Logout ends the session. It never fails from the browser's point of view.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), h.sid(r), rememberToken(r)); err != nil {
		h.fail(w, r, h.page(r, "error", "Error", nil), err)
		return
	}
	http.SetCookie(w, h.cookies.expiredRememberCookie())
	h.presenter.Redirect(w, r, loginPath, nil)
}
