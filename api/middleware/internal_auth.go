package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/giftlane/giftlane-backend/api/responses"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
)

// InternalAuth guards operator-only endpoints with a static bearer token.
func InternalAuth(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "internal endpoints disabled"))
				return
			}

			presented := bearerToken(r)
			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing or invalid internal token"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
