package server

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"zipdrop/internal/storage"
)

// serveFile handles GET/HEAD /files/{name...}. Directories are never
// listed; they answer 404 like missing entries.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/files/")
	if storage.ValidateName(name) != nil {
		http.NotFound(w, r)
		return
	}

	obj, err := s.root.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrIsDirectory) {
			http.NotFound(w, r)
			return
		}
		s.metrics.RecordDownloadError()
		log.Printf("rid=%s msg=open_file name=%q err=%v", RequestIDFromContext(r.Context()), name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer obj.Close()

	info := obj.Info()
	http.ServeContent(w, r, info.Name, info.ModTime, obj)
	if r.Method == http.MethodGet {
		s.metrics.RecordDownload(info.Size)
	}
}
