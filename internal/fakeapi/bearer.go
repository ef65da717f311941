package fakeapi

import (
	"context"
	"net/http"
	"strings"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the verified claims stored by the bearer check.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*Claims)
	if !ok {
		return &Claims{}, false
	}
	return c, true
}

// requireBearer answers 401 unless the request carries a valid bearer token.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Not authorized, no token"})
			return
		}

		claims, err := s.signer.Parse(token)
		if err != nil {
			s.logger.DebugContext(r.Context(), "bearer rejected", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Not authorized, token failed"})
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
