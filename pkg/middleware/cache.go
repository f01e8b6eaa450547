package middleware

import (
	"net/http"
)

// NoStore returns a middleware that forbids caching of the response. Used on
// polling endpoints whose payload changes out of band, where a stale cached
// answer would be worse than no answer.
func NoStore() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
