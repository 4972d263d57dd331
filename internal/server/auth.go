package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/echoclip/echoclip-api/internal/session"
	"github.com/echoclip/echoclip-api/internal/user"
)

// sessionCookieName is the cookie carrying the opaque session token.
const sessionCookieName = "session_token"

// authContext is the result of resolving the session cookie.
type authContext struct {
	user    *user.User
	session *session.Session
}

// authenticate resolves the session cookie to a user. Every authenticated
// handler runs this exact guard: missing or unknown tokens and expired
// sessions all end the request with a 401; the caller only proceeds with a
// fully resolved user. Returns false when the response has been written.
func (h *Handlers) authenticate(w http.ResponseWriter, r *http.Request) (*authContext, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
		return nil, false
	}

	sess, err := h.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			h.clearSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "session expired", "SESSION_EXPIRED")
			return nil, false
		}
		if errors.Is(err, session.ErrNotFound) {
			h.clearSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
			return nil, false
		}
		h.logger.Error("session lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to resolve session", "SESSION_LOOKUP_FAILED")
		return nil, false
	}

	u, err := h.users.FindByID(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Account withdrawn while the cookie was still live.
			h.clearSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
			return nil, false
		}
		h.logger.Error("user lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to resolve user", "USER_LOOKUP_FAILED")
		return nil, false
	}

	return &authContext{user: u, session: sess}, true
}

// setSessionCookie writes the session token cookie. Development runs over
// plain HTTP on localhost, so the cookie is lax and not secure; production
// serves cross-site frontends and requires SameSite=None with Secure.
func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(ttl.Seconds()),
	}
	if h.production {
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	} else {
		cookie.SameSite = http.SameSiteLaxMode
		cookie.Secure = false
	}
	http.SetCookie(w, cookie)
}

// clearSessionCookie expires the session token cookie.
func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	}
	if h.production {
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	} else {
		cookie.SameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, cookie)
}
