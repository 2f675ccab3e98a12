package lifecycle

import (
	"net/http"

	"github.com/JaimeStill/safestack/pkg/handlers"
)

// Liveness answers 200 while the process can serve HTTP at all.
func Liveness(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness answers 200 once c is ready and 503 with the pending
// subsystems otherwise.
func (c *Coordinator) Readiness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.Status()
		code := http.StatusOK
		if !status.Ready {
			code = http.StatusServiceUnavailable
		}
		handlers.RespondJSON(w, code, status)
	}
}
