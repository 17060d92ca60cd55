package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// corsMaxAge is how long, in seconds, browsers may cache a preflight.
const corsMaxAge = 600

// CORS returns a middleware that lets the single-page app call the API from
// the listed origins and answers preflight requests.
//
// The browser sends the ID token in a custom header, so that header must be
// listed in Access-Control-Allow-Headers or every authenticated call fails
// its preflight. A "*" entry allows any origin.
func CORS(allowedOrigins []string, tokenHeader string) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", tokenHeader, "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         corsMaxAge,
	})
}
