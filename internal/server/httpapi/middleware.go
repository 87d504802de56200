package httpapi

import (
	"net/http"
	"strconv"
)

// sizeLimitOverhead leaves room for the multipart framing and the metadata
// form field on top of the blob itself.
const sizeLimitOverhead = 10 * 1024

// SizeLimit rejects requests whose declared Content-Length exceeds the blob
// cap plus overhead, before any of the body has been read. Requests without
// a Content-Length pass through; the upload handler still reads the body
// through http.MaxBytesReader.
func SizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cl := r.Header.Get("Content-Length"); cl != "" {
				if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > maxBytes+sizeLimitOverhead {
					writeJSON(w, http.StatusRequestEntityTooLarge,
						errorResponse{"File too large. Maximum size is 50 MB."})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS applies the permissive policy the web client expects and answers
// preflight requests directly.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
