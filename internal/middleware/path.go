// Package middleware holds HTTP middleware shared by the mirror server.
package middleware

import (
	"net/http"
	"strings"
)

// LowercasePath folds the request path to lower case before routing.
// Object references are often typed by hand (NET20, Org-5) and end up in
// mirror URLs as written, while the mirror only registers lower case tags.
func LowercasePath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = strings.ToLower(r.URL.Path)
		if r.URL.RawPath != "" {
			r.URL.RawPath = strings.ToLower(r.URL.RawPath)
		}
		next.ServeHTTP(w, r)
	})
}
