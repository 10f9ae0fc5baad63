package auth

import (
	"crypto/hmac"
	"net/http"
	"strings"
)

// ValidToken compares a presented bearer token against the configured
// service token in constant time. An empty configured token disables the
// check (development mode).
func ValidToken(r *http.Request, serviceToken string) bool {
	if serviceToken == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	presented, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return hmac.Equal([]byte(presented), []byte(serviceToken))
}
