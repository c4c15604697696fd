/**
 * @description
 * This file contains the portal middleware: session cookie handling, the
 * authentication gate, and activity tracking for the inactivity timeout.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5 (via SessionTokens): session cookie signing.
 * - internal/app: SessionController for the current user and remember-me.
 */

package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/transfa/portal-service/internal/app"
	"github.com/transfa/portal-service/internal/domain"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	sessionIDKey ContextKey = "sessionID"
	userKey      ContextKey = "user"
)

// requestSession is the browser session of one request. Its id changes when a
// login rotates the session.
type requestSession struct {
	id      string
	tokens  *SessionTokens
	cookies CookieSettings
}

// SessionIDFromContext returns the browser session id set by SessionMiddleware.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	session, ok := ctx.Value(sessionIDKey).(*requestSession)
	if !ok || session == nil || session.id == "" {
		return "", false
	}
	return session.id, true
}

// rotateSession moves the request onto sid and sends the browser a new session
// cookie. It returns the signed token for API clients.
func rotateSession(w http.ResponseWriter, r *http.Request, sid string) (string, error) {
	session, ok := r.Context().Value(sessionIDKey).(*requestSession)
	if !ok || session == nil {
		return "", errors.New("session not initialized")
	}
	signed, err := session.tokens.Issue(sid)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, session.cookies.sessionCookie(signed))
	session.id = sid
	return signed, nil
}

// UserFromContext returns the user set by AuthMiddleware.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey).(*domain.User)
	return user, ok && user != nil
}

// SessionMiddleware resolves the session id from the signed session cookie, or
// from a bearer token for API clients. A missing or invalid token starts a new
// session.
func SessionMiddleware(tokens *SessionTokens, cookies CookieSettings) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if raw := sessionTokenFromRequest(r); raw != "" {
				parsed, err := tokens.Parse(raw)
				if err != nil {
					log.Printf("level=info component=api msg=\"discarding invalid session token\" err=%v", err)
				} else {
					sid = parsed
				}
			}

			if sid == "" {
				sid = uuid.NewString()
				signed, err := tokens.Issue(sid)
				if err != nil {
					log.Printf("level=error component=api msg=\"session token issue failed\" err=%v", err)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, cookies.sessionCookie(signed))
			}

			ctx := context.WithValue(r.Context(), sessionIDKey, &requestSession{id: sid, tokens: tokens, cookies: cookies})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionTokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token := strings.TrimPrefix(header, "Bearer "); token != header {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware admits only authenticated sessions. A remember-me cookie is
// tried before the request is treated as anonymous. Every admitted request counts
// as pointer activity.
func AuthMiddleware(sessions *app.SessionController, presenter Presenter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, ok := SessionIDFromContext(r.Context())
			if !ok {
				http.Error(w, "Session not initialized", http.StatusInternalServerError)
				return
			}

			user, err := currentOrRemembered(w, r, sessions, sid)
			if err != nil {
				log.Printf("level=error component=api msg=\"session lookup failed\" err=%v", err)
				presenter.Render(w, r, http.StatusInternalServerError, Page{Name: "error", Title: "Error", Alert: errorAlert(app.MsgUnexpected)})
				return
			}
			if user == nil {
				presenter.Unauthorized(w, r, loginPath)
				return
			}

			sid, _ = SessionIDFromContext(r.Context())
			sessions.Touch(r.Context(), sid, app.ActivityPointer)
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// currentOrRemembered returns the session user. A remembered login opens a new
// session and moves the request onto it.
func currentOrRemembered(w http.ResponseWriter, r *http.Request, sessions *app.SessionController, sid string) (*domain.User, error) {
	user, err := sessions.CurrentUser(r.Context(), sid)
	if err != nil || user != nil {
		return user, err
	}
	cookie, err := r.Cookie(RememberCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	result, err := sessions.RestoreRemembered(r.Context(), sid, cookie.Value)
	if err != nil || result == nil {
		return nil, err
	}
	if _, err := rotateSession(w, r, result.SessionID); err != nil {
		return nil, err
	}
	return &result.User, nil
}
