package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowercasePath(t *testing.T) {
	var got string
	h := LowercasePath(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Path
	}))

	for _, p := range []string{"/api/NET/20", "/Api/net/20", "/api/net/20"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, "/api/net/20", got, p)
	}
}
