package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	SessionCookieName  = "portal_session"
	RememberCookieName = "portal_remember"

	sessionTokenIssuer = "portal-service"
	sessionTokenTTL    = 24 * time.Hour
)

var errInvalidSessionToken = errors.New("invalid session token")

// SessionTokens signs and verifies the browser session cookie. The token only
// carries the session id; everything else lives in the session store.
type SessionTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionTokens(secret string) *SessionTokens {
	return &SessionTokens{secret: []byte(secret), ttl: sessionTokenTTL, now: time.Now}
}

// Issue signs a token for sid.
func (t *SessionTokens) Issue(sid string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		ID:        sid,
		Issuer:    sessionTokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns its session id.
func (t *SessionTokens) Parse(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(sessionTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidSessionToken, err)
	}
	if !parsed.Valid || claims.ID == "" {
		return "", errInvalidSessionToken
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return "", fmt.Errorf("%w: malformed session id", errInvalidSessionToken)
	}
	return claims.ID, nil
}

// CookieSettings controls the attributes of the portal cookies.
type CookieSettings struct {
	Secure bool
}

func (c CookieSettings) sessionCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c CookieSettings) rememberCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     RememberCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c CookieSettings) expiredRememberCookie() *http.Cookie {
	return &http.Cookie{
		Name:     RememberCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
