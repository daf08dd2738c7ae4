package handlers

import (
	"net/http"
	"time"

	"github.com/jredh-dev/waypost/internal/session"
)

// AuthMiddleware requires a valid session cookie and stores the session in
// the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := h.currentSession(r)
		if sess == nil {
			clearSessionCookie(w)
			jsonError(w, "Please sign in to continue.", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
	})
}

// currentSession resolves the session cookie, or returns nil.
func (h *Handler) currentSession(r *http.Request) *session.Session {
	if sess, ok := session.FromContext(r.Context()); ok {
		return sess
	}
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	claims, err := h.tokens.ValidateToken(cookie.Value)
	if err != nil {
		h.logger.Debug("rejected session cookie", "error", err)
		return nil
	}
	sess, err := h.sessions.Lookup(r.Context(), claims.SessionID)
	if err != nil {
		h.logger.Warn("session lookup failed", "session_id", claims.SessionID, "error", err)
		return nil
	}
	if sess == nil {
		// Expired or signed out elsewhere; release any views it left open.
		h.dropViews(claims.SessionID)
	}
	return sess
}

// mustSession returns the session set by AuthMiddleware.
func mustSession(r *http.Request) *session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
}
