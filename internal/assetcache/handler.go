package assetcache

import (
	"errors"
	"net/http"
	"strconv"
)

// Handler serves assets cache-first. Responses carry X-Cache: hit or miss.
// A miss whose origin cannot be reached is answered with 504.
func (w *Worker) Handler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			rw.Header().Set("Allow", "GET, HEAD")
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		resp, hit, err := w.Serve(r.Context(), r.URL.Path)
		if err != nil {
			rw.Header().Set("X-Cache", "miss")
			if errors.Is(err, ErrOriginUnreachable) {
				http.Error(rw, "offline and not cached", http.StatusGatewayTimeout)
				return
			}
			w.logger.Printf("Error serving %s: %v", r.URL.Path, err)
			http.Error(rw, "internal error", http.StatusInternalServerError)
			return
		}

		h := rw.Header()
		if resp.ContentType != "" {
			h.Set("Content-Type", resp.ContentType)
		}
		h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
		if hit {
			h.Set("X-Cache", "hit")
		} else {
			h.Set("X-Cache", "miss")
		}
		rw.WriteHeader(resp.Status)
		if r.Method == http.MethodGet {
			_, _ = rw.Write(resp.Body)
		}
	})
}
