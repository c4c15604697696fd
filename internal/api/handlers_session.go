package api

import (
	"net/http"
	"time"

	"github.com/transfa/portal-service/internal/app"
)

type sessionStatus struct {
	Authenticated bool       `json:"authenticated"`
	Expiring      bool       `json:"expiring"`
	Navbar        app.Navbar `json:"navbar"`
}

// SessionStatus is polled by the layout to show the expiry warning. It does not
// count as activity.
func (h *Handlers) SessionStatus(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.CurrentUser(r.Context(), h.sid(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, envelope{Error: app.MsgUnexpected})
		return
	}
	status := sessionStatus{
		Authenticated: user != nil,
		Expiring:      h.sessions.ExpiryNotice(r.Context(), h.sid(r)),
		Navbar:        app.NavbarFor(user),
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: status})
}

// SessionActivity records a key or scroll event reported by the browser. Only
// qualifying activity resets the idle timer.
func (h *Handlers) SessionActivity(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Error: err.Error()})
		return
	}
	user, err := h.sessions.CurrentUser(r.Context(), h.sid(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, envelope{Error: app.MsgUnexpected})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, envelope{Error: msgLoginRequired, Redirect: loginPath})
		return
	}

	kind, ok := app.ParseActivity(values.Get("type"))
	if ok {
		h.sessions.Touch(r.Context(), h.sid(r), kind)
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]bool{"reset": ok}})
}

type healthStatus struct {
	Status         string     `json:"status"`
	BankAPIHealthy bool       `json:"bank_api_healthy"`
	LastProbe      *time.Time `json:"last_probe,omitempty"`
}

// Health reports the portal as healthy along with the last banking API probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{Status: "healthy", BankAPIHealthy: true}
	if h.health != nil {
		status.BankAPIHealthy = h.health.BankAPIHealthy()
		if last := h.health.LastProbe(); !last.IsZero() {
			status.LastProbe = &last
		}
	}
	writeJSON(w, http.StatusOK, status)
}
