package middleware

import (
	"net/http"
	"time"

	"github.com/wolfman30/despacho-web/internal/identity"
)

// Visitor makes sure every request carries a visitor id. An existing valid
// userId cookie is reused; otherwise a new id is issued and set.
func Visitor(secureCookie bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identity.FromRequest(r)
			if !ok {
				id = identity.NewID(time.Now())
				identity.SetCookie(w, id, secureCookie)
			}
			next.ServeHTTP(w, r.WithContext(identity.WithUserID(r.Context(), id)))
		})
	}
}
