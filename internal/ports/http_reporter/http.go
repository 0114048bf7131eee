package http_reporter

import (
	"encoding/json"
	"net/http"

	"github.com/gt-tallinn/node-client/domain"
)

// NewHandler creates an HTTP handler that serves a snapshot of the given store.
func NewHandler(store domain.StoreReader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snapshot := store.GetSnapshot()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			http.Error(w, "Failed to encode snapshot to JSON", http.StatusInternalServerError)
		}
	})
}
