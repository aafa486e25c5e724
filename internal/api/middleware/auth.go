package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/signalpress/signalpress/pkg/contracts"
	pkgmw "github.com/signalpress/signalpress/pkg/middleware"
)

// AuthChain is the auth.ProviderChain capability this middleware needs.
type AuthChain interface {
	Authenticate(ctx context.Context, token string) (*contracts.Identity, error)
}

// publicPaths never require authentication.
var publicPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/version": true,
}

// Auth validates the caller against chain and, once authenticated,
// stores the Identity in the request context for downstream handlers.
// If chain has no enabled providers, requests pass through
// unauthenticated (auth is effectively disabled, matching the
// teacher's "no keys configured -> disabled" default).
func Auth(chain AuthChain) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			identity, err := chain.Authenticate(r.Context(), token)
			if err != nil {
				respondUnauthorized(w, err.Error())
				return
			}

			ctx := r.Context()
			if identity != nil {
				ctx = pkgmw.SetIdentity(ctx, identity)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if key := r.URL.Query().Get("api_key"); key != "" {
		v, err := url.QueryUnescape(key)
		if err == nil {
			return v
		}
		return key
	}
	return ""
}

func respondUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="signalpress"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": msg})
}
