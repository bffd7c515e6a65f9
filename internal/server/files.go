package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"zipdrop/internal/storage"
)

// maxDeleteBody caps the JSON body accepted by /delete-file.
const maxDeleteBody = 4 << 10

type deleteFileReq struct {
	Name string `json:"name"`
}

// listFilesHandler handles GET /list-files. It returns the names of the
// direct children of the Storage Root as a JSON array.
func (s *Server) listFilesHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.root.List(r.Context())
	if err != nil {
		log.Printf("rid=%s msg=list_files err=%v", RequestIDFromContext(r.Context()), err)
		http.Error(w, "Error reading files", http.StatusInternalServerError)
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(names); err != nil {
		log.Printf("rid=%s msg=list_files_encode err=%v", RequestIDFromContext(r.Context()), err)
	}
}

// deleteFileHandler handles POST /delete-file with body {"name": "..."}.
// Directories are removed recursively.
func (s *Server) deleteFileHandler(w http.ResponseWriter, r *http.Request) {
	rid := RequestIDFromContext(r.Context())

	var req deleteFileReq
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDeleteBody)).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}
	if err := storage.ValidateName(req.Name); err != nil {
		http.Error(w, "invalid name", http.StatusBadRequest)
		return
	}

	unlock := s.locks.Lock(storage.TopLevel(req.Name))
	defer unlock()

	info, err := s.root.Stat(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "File or folder not found", http.StatusNotFound)
			return
		}
		log.Printf("rid=%s msg=stat name=%q err=%v", rid, req.Name, err)
		http.Error(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	if info.IsDir {
		if err := s.root.RemoveAll(r.Context(), req.Name); err != nil {
			log.Printf("rid=%s msg=remove_folder name=%q err=%v", rid, req.Name, err)
			s.recordAudit(r, AuditLog{Action: AuditActionDelete, Resource: req.Name, Success: false, ErrorMsg: err.Error()})
			http.Error(w, "Error deleting folder", http.StatusInternalServerError)
			return
		}
		s.metrics.RecordDelete(true)
		s.recordAudit(r, AuditLog{Action: AuditActionDelete, Resource: req.Name, Success: true, Details: map[string]any{"dir": true}})
		writeText(w, http.StatusOK, "Folder deleted")
		return
	}

	if err := s.root.Remove(r.Context(), req.Name); err != nil {
		log.Printf("rid=%s msg=remove_file name=%q err=%v", rid, req.Name, err)
		s.recordAudit(r, AuditLog{Action: AuditActionDelete, Resource: req.Name, Success: false, ErrorMsg: err.Error()})
		http.Error(w, "Error deleting file", http.StatusInternalServerError)
		return
	}
	s.metrics.RecordDelete(false)
	s.recordAudit(r, AuditLog{Action: AuditActionDelete, Resource: req.Name, Success: true, Details: map[string]any{"dir": false}})
	writeText(w, http.StatusOK, "File deleted")
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
