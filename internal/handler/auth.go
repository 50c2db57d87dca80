package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/gradepaper/gradepaper/internal/store"
)

// requireAuth is middleware enforcing HTTP basic auth against the
// users table.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			h.unauthorized(w)
			return
		}

		user, err := h.store.GetUserByUsername(username)
		if err != nil {
			slog.Error("failed to get user", "error", err)
			h.unauthorized(w)
			return
		}
		if user == nil || !user.Active {
			h.unauthorized(w)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			h.unauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="gradepaper"`)
	respondError(w, http.StatusUnauthorized, "unauthorized")
}

// SeedAdmin creates the admin account on first run. An existing user
// table is left untouched.
func SeedAdmin(s *store.Store, password string) error {
	count, err := s.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or GRADEPAPER_ADMIN_PASSWORD env var")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.CreateUser(store.User{
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         "admin",
		Active:       true,
	})
	return err
}
