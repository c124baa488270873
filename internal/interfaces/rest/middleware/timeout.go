package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/escrowbot/payments/internal/interfaces/rest"
)

// Timeout cancels the request context at the deadline and replies with the
// standard error envelope when a handler runs past it.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	body, _ := json.Marshal(rest.ErrorResponse{
		Error: rest.ErrorDetail{
			Code:    "TIMEOUT",
			Message: "Request timed out. Please try again.",
		},
	})

	return func(next http.Handler) http.Handler {
		handler := http.TimeoutHandler(next, timeout, string(body))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			handler.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
