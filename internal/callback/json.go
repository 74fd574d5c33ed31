package callback

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/florianilch/socialauth/internal/backend"
)

// writeJSONError answers a failed callback in the backend's envelope shape,
// so the browser tab shows the same {"message": ...} body the backend would.
func writeJSONError(ctx context.Context, w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(backend.Envelope[any]{Message: message}); err != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}
