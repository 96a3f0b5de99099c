package httpx

import (
	"net/http"
	"strings"
)

// OriginPolicy decides whether a browser origin may call an endpoint.
type OriginPolicy func(r *http.Request, origin string) bool

// AllowAnyOrigin is used for public metadata such as the JWKS document.
func AllowAnyOrigin(*http.Request, string) bool { return true }

// CORS answers preflight requests and adds Access-Control headers when the
// request Origin is accepted by policy. Rejected origins get no CORS headers
// and the browser blocks the response.
func CORS(policy OriginPolicy, methods ...string) Middleware {
	allowMethods := strings.Join(append(methods, http.MethodOptions), ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := origin != "" && policy(r, origin)

			if allowed {
				h := w.Header()
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", allowMethods)
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if allowed {
					w.WriteHeader(http.StatusNoContent)
				} else {
					w.WriteHeader(http.StatusForbidden)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
