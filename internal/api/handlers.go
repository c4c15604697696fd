/**
 * @description
 * This file defines the Handlers type shared by every portal page and the
 * error mapping used at the handler boundary.
 *
 * @notes
 * - Errors are rendered into the page's single alert region.
 * - A 401 from the banking API forces a local logout and a redirect to login.
 */

package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/transfa/portal-service/internal/app"
	"github.com/transfa/portal-service/internal/domain"
	"github.com/transfa/portal-service/pkg/bankclient"
)

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

// HealthReporter exposes the result of the scheduled banking API probe.
type HealthReporter interface {
	BankAPIHealthy() bool
	LastProbe() time.Time
}

// Services groups the application components the handlers drive.
type Services struct {
	Sessions  *app.SessionController
	Accounts  *app.AccountViews
	Transfers *app.TransferWorkflow
	Health    HealthReporter
}

// Handlers serves the portal pages through one Presenter.
type Handlers struct {
	sessions  *app.SessionController
	accounts  *app.AccountViews
	transfers *app.TransferWorkflow
	health    HealthReporter
	cookies   CookieSettings
	presenter Presenter
}

func NewHandlers(services Services, cookies CookieSettings, presenter Presenter) *Handlers {
	return &Handlers{
		sessions:  services.Sessions,
		accounts:  services.Accounts,
		transfers: services.Transfers,
		health:    services.Health,
		cookies:   cookies,
		presenter: presenter,
	}
}

func (h *Handlers) sid(r *http.Request) string {
	sid, _ := SessionIDFromContext(r.Context())
	return sid
}

// user returns the authenticated user. Only valid behind AuthMiddleware.
func (h *Handlers) user(r *http.Request) domain.User {
	if user, ok := UserFromContext(r.Context()); ok {
		return *user
	}
	return domain.User{}
}

func (h *Handlers) page(r *http.Request, name, title string, data any) Page {
	user, _ := UserFromContext(r.Context())
	return Page{Name: name, Title: title, Navbar: app.NavbarFor(user), Data: data}
}

// fail renders err into page's alert region, or ends the session when the
// banking API rejected the token.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, page Page, err error) {
	if app.RequiresLogout(err) {
		h.forceLogout(w, r)
		return
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("level=error component=api msg=\"request failed\" path=%s status=%d err=%v", r.URL.Path, status, err)
	}
	page.Alert = errorAlert(app.UserMessages(err)...)
	h.presenter.Render(w, r, status, page)
}

func (h *Handlers) forceLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), h.sid(r), rememberToken(r)); err != nil {
		log.Printf("level=warn component=api msg=\"forced logout clear failed\" err=%v", err)
	}
	http.SetCookie(w, h.cookies.expiredRememberCookie())
	h.presenter.Unauthorized(w, r, loginPath+"?expired=1")
}

func rememberToken(r *http.Request) string {
	if cookie, err := r.Cookie(RememberCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func statusFor(err error) int {
	var (
		validationErr *app.ValidationError
		rateErr       *app.RateLimitError
		httpErr       *bankclient.HTTPError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests
	case errors.Is(err, app.ErrTransferInFlight), errors.Is(err, app.ErrNoPendingTransfer):
		return http.StatusConflict
	case errors.Is(err, app.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, bankclient.ErrNetworkUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &httpErr):
		switch {
		case httpErr.StatusCode >= http.StatusInternalServerError:
			return http.StatusBadGateway
		case httpErr.StatusCode >= http.StatusBadRequest:
			return httpErr.StatusCode
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}
