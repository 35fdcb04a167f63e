package auth

import (
	"errors"
	"net/http"

	"deliveryService/internal/apperr"
	"deliveryService/internal/logx"
)

// Realm is announced in WWW-Authenticate challenges.
const Realm = "deliveryService"

// Middleware authenticates requests with HTTP basic auth and stores the Principal in
// the request context. Failures get a 401 with an empty error message.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				v.log.Info("invalid authorization header, or header missing", logx.String("path", r.URL.Path))
				unauthenticated(w)
				return
			}
			p, err := v.Verify(r.Context(), username, password)
			if err != nil {
				if errors.Is(err, apperr.Unauthenticated) {
					unauthenticated(w)
					return
				}
				v.log.Error("verify credentials", logx.String("path", r.URL.Path), logx.Err(err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal error"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":""}`))
}
