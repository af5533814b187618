package auth

import (
	"context"
	"net/http"
	"strings"

	"cbtimport/internal/app/apiresp"
)

type contextKey string

const clientContextKey contextKey = "import_client"

const clientNameHeader = "X-Import-Client"

const anonymousClient = "anonymous"

// RequireToken rejects requests without a valid bearer token and stores the
// caller in the request context.
func RequireToken(g *Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := g.Verify(readBearerToken(r)); err != nil {
				apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			name := strings.TrimSpace(r.Header.Get(clientNameHeader))
			switch {
			case g.Anonymous():
				name = anonymousClient
			case name == "":
				name = "importer"
			}
			ctx := ContextWithClient(r.Context(), &Client{Name: name, IP: readIP(r)})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func CurrentClient(ctx context.Context) (*Client, bool) {
	v := ctx.Value(clientContextKey)
	if v == nil {
		return nil, false
	}
	c, ok := v.(*Client)
	return c, ok
}

// ContextWithClient injects an authenticated client into context.
// Useful for tests and internal handlers.
func ContextWithClient(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, clientContextKey, c)
}

func readBearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

func readIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	return strings.TrimSpace(r.RemoteAddr)
}
