package auth

import (
	"net/http"

	"github.com/saulo-duarte/okr-progress/internal/config"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Logout expires the session cookie read by AuthMiddleware. Bearer tokens are
// stateless and simply run out.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})

	config.WithContext(r.Context()).Info("Session cookie cleared")
	w.WriteHeader(http.StatusNoContent)
}
