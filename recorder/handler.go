package recorder

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Handler serves recorded exchanges as JSON at GET <prefix><id>.
func (r *Recorder) Handler(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id, ok := strings.CutPrefix(req.URL.Path, prefix)
		if !ok || id == "" || strings.Contains(id, "/") {
			http.NotFound(w, req)
			return
		}

		ex, err := r.Lookup(req.Context(), id)
		switch {
		case errors.Is(err, ErrNotFound):
			http.NotFound(w, req)
			return
		case err != nil:
			r.log.Error().Err(err).Str("request_id", id).Msg("exchange lookup failed")
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ex)
	})
}
