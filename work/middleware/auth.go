package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"nvr-kiosk/work/logger"
)

// RequireAdmin guards mutating admin routes with the shared admin secret,
// presented in the X-Admin-Secret header and compared against the stored
// bcrypt hash.
func RequireAdmin(passHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := r.Header.Get("X-Admin-Secret")
			if secret == "" {
				http.Error(w, "admin secret required", http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(passHash), []byte(secret)); err != nil {
				logger.Warn("Rejected admin request from %s", r.RemoteAddr)
				http.Error(w, "invalid admin secret", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
