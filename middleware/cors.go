package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS wraps the whole router so browser preflights are answered before gin
// routing and auth run.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "X-All-Answered"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
