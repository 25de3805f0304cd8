package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
)

type bearerTokenKey struct{}

// TokenList is the list of operator tokens that bypass rate limiting
var TokenList = ParseTokenList(os.Getenv("TOKEN_LIST"))

// ParseTokenList splits a comma separated token list, dropping empty entries
func ParseTokenList(raw string) []string {
	var result []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			result = append(result, t)
		}
	}
	return result
}

// BearerToken is a middleware that adds the bearer token included in a request's headers to context
func BearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), bearerTokenKey{}, BearerTokenFromHeader(r.Header.Get("Authorization")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerTokenFromHeader extracts the token of an Authorization bearer header
func BearerTokenFromHeader(header string) string {
	if len(header) > 7 && strings.ToUpper(header[0:6]) == "BEARER" {
		return header[7:]
	}
	return ""
}

// BearerTokenFromContext returns the token stored by BearerToken
func BearerTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(bearerTokenKey{}).(string)
	return token
}

func isSimpleTokenValid(list []string, token string) bool {
	if token == "" {
		return false
	}
	for _, validToken := range list {
		// NOTE token length information is leaked even with subtle.ConstantTimeCompare
		if subtle.ConstantTimeCompare([]byte(validToken), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

func isSimpleTokenInContext(ctx context.Context) bool {
	return isSimpleTokenValid(TokenList, BearerTokenFromContext(ctx))
}
