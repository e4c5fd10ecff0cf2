package web

import (
	"net/http"
	"strings"

	"github.com/mtanaka/courseforge/internal/platform/requestctx"
	"github.com/mtanaka/courseforge/internal/platform/webtoken"
)

// sessionCookieName carries the signed admin session token.
const sessionCookieName = "courseforge_session"

// withSession attaches the verified session user to the request context.
// Requests without a valid session continue anonymously.
func withSession(tokens *webtoken.Manager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || tokens == nil {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := tokens.VerifySession(strings.TrimSpace(cookie.Value))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := requestctx.WithUser(r.Context(), requestctx.User{ID: userID, Admin: true})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
