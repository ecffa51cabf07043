// Package auth trusts the identity set by the reverse proxy in front of the
// portal and resolves it to an administrator.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Christianjames01/repo-sub000/internal/db"
	"github.com/Christianjames01/repo-sub000/internal/models"
	"go.uber.org/zap"
)

type contextKey string

// AdminKey is the context key used to store the authenticated administrator.
const AdminKey contextKey = "administrator"

// EmailHeader is set by the authenticating reverse proxy.
const EmailHeader = "Remote-Email"

// AdminLookup resolves an email address to an administrator.
type AdminLookup interface {
	GetAdministratorByEmail(ctx context.Context, email string) (*models.Administrator, error)
}

// RequireAdmin rejects requests that do not carry the proxy's email header
// (401) or whose email is not an administrator (403). The administrator is
// stored in the request context for downstream handlers.
func RequireAdmin(lookup AdminLookup, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := strings.TrimSpace(r.Header.Get(EmailHeader))
			if email == "" {
				logger.Debug("no identity header present", zap.String("path", r.URL.Path))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			admin, err := lookup.GetAdministratorByEmail(r.Context(), email)
			if errors.Is(err, db.ErrAdministratorNotFound) {
				logger.Info("rejected non-administrator", zap.String("email", email))
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			if err != nil {
				logger.Error("failed to look up administrator", zap.String("email", email), zap.Error(err))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), AdminKey, admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminFromContext returns the administrator stored by RequireAdmin.
func AdminFromContext(ctx context.Context) (*models.Administrator, bool) {
	admin, ok := ctx.Value(AdminKey).(*models.Administrator)
	return admin, ok && admin != nil
}
