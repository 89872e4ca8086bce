// internal/auth/middleware/attach_role.go
package auth

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/mind-engage/quizmaster/internal/rbac"
)

// AttachRoleFromDB replaces the claimed role with the stored one and rejects
// deactivated or deleted accounts. Must run after JWTMiddleware.
func AttachRoleFromDB(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, ok := rbac.PrincipalFromContext(ctx)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			var roleName string
			var active bool
			err := db.QueryRowContext(ctx,
				`SELECT role, active FROM users WHERE id=$1`, p.UserID,
			).Scan(&roleName, &active)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			case err != nil:
				log.Printf("attach role: user %d: %v", p.UserID, err)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			if !active {
				http.Error(w, "account inactive", http.StatusForbidden)
				return
			}
			role, err := rbac.ParseRole(roleName)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			p.Role = role
			next.ServeHTTP(w, r.WithContext(rbac.WithPrincipal(ctx, p)))
		})
	}
}
