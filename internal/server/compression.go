// compression.go - gzip response compression.
//
// Stored files under /files/ are served as-is so Range requests and
// Content-Length stay intact; everything else (HTML, JSON, metrics text)
// goes through gzhttp.
package server

import (
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"
)

func compressionMiddleware(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipCompression(r) {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// shouldSkipCompression determines if compression should be skipped for this request.
func shouldSkipCompression(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/files/")
}
