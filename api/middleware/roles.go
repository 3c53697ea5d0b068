package middleware

import (
	"net/http"

	"github.com/delgo-app/delgo-backend/api/responses"
	pkgAuth "github.com/delgo-app/delgo-backend/pkg/auth"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/logger"
)

// RequireOperation gates a route on the role policy table. Admins pass every
// gate; other roles must be granted the operation explicitly.
func RequireOperation(op pkgAuth.Operation, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.MemberRole(RoleFromContext(r.Context()))
			if !pkgAuth.Allowed(role, op) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "operation not permitted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
