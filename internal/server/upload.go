package server

import (
	"context"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"zipdrop/internal/archive"
	"zipdrop/internal/storage"
)

// adminURL is where successful uploads redirect to. The original query
// string is carried over so the access flag survives the round trip.
func adminURL(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return "/admin"
	}
	return "/admin?" + r.URL.RawQuery
}

func isMaxBytes(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// nextFilePart returns the first multipart part named "file" that carries a
// filename. Other parts are skipped.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

// uploadHandler handles POST /upload (multipart, field "file").
//
// The file is stored under its original name, replacing any existing file.
// Names ending in ".zip" are extracted into a directory named after the
// archive; the archive is removed only once extraction succeeded. A failed
// extraction leaves the archive and any partially extracted entries behind.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	rid := RequestIDFromContext(r.Context())
	start := time.Now()

	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		s.metrics.RecordUploadError()
		http.Error(w, "expected multipart form", http.StatusBadRequest)
		return
	}

	part, err := nextFilePart(mr)
	if err != nil {
		s.metrics.RecordUploadError()
		switch {
		case isMaxBytes(err):
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			http.Error(w, "missing file", http.StatusBadRequest)
		default:
			http.Error(w, "bad multipart body", http.StatusBadRequest)
		}
		return
	}
	defer part.Close()

	name := part.FileName()
	if err := storage.ValidateName(name); err != nil {
		s.metrics.RecordUploadError()
		http.Error(w, "invalid file name", http.StatusBadRequest)
		return
	}

	isArchive := archive.IsArchive(name)
	target := ""
	keys := []string{name}
	if isArchive {
		target = archive.TargetDir(name)
		if storage.ValidateName(target) != nil {
			s.metrics.RecordUploadError()
			http.Error(w, "invalid archive name", http.StatusBadRequest)
			return
		}
		keys = append(keys, target)
	}

	unlock := s.locks.Lock(keys...)
	defer unlock()

	n, err := s.store(r.Context(), name, part)
	if err != nil {
		s.metrics.RecordUploadError()
		s.recordAudit(r, AuditLog{Action: AuditActionUpload, Resource: name, Success: false, ErrorMsg: err.Error()})
		if isMaxBytes(err) {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Printf("rid=%s msg=store_upload name=%q err=%v", rid, name, err)
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}
	s.metrics.RecordUpload(n, time.Since(start))
	s.recordAudit(r, AuditLog{
		Action:   AuditActionUpload,
		Resource: name,
		Success:  true,
		Details:  map[string]any{"size_bytes": n},
	})

	if !isArchive {
		http.Redirect(w, r, adminURL(r), http.StatusFound)
		return
	}

	manifest, err := s.extract(r.Context(), name, target)
	if err != nil {
		s.metrics.RecordExtractionFailure()
		s.recordAudit(r, AuditLog{Action: AuditActionExtract, Resource: name, Success: false, ErrorMsg: err.Error()})
		s.log.Error("archive extraction failed", map[string]any{
			"request_id": rid,
			"archive":    name,
			"target":     target,
		}, err)
		http.Error(w, "Failed to extract zip file.", http.StatusInternalServerError)
		return
	}

	if err := s.root.Remove(r.Context(), name); err != nil {
		log.Printf("rid=%s msg=remove_archive name=%q err=%v", rid, name, err)
		http.Error(w, "Failed to remove zip file after extraction.", http.StatusInternalServerError)
		return
	}

	s.metrics.RecordExtraction(len(manifest.Entries), manifest.TotalBytes(), time.Since(start))
	s.recordAudit(r, AuditLog{
		Action:   AuditActionExtract,
		Resource: name,
		Success:  true,
		Details: map[string]any{
			"target":      target,
			"entries":     len(manifest.Entries),
			"total_bytes": manifest.TotalBytes(),
		},
	})
	s.log.Info("archive extracted", map[string]any{
		"request_id":  rid,
		"archive":     name,
		"target":      target,
		"entries":     len(manifest.Entries),
		"total_bytes": manifest.TotalBytes(),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	http.Redirect(w, r, adminURL(r), http.StatusFound)
}

// store streams src into the Storage Root under name. A partially written
// file is removed.
func (s *Server) store(ctx context.Context, name string, src io.Reader) (int64, error) {
	wc, err := s.root.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(wc, src)
	if err != nil {
		_ = wc.Close()
		_ = s.root.Remove(context.WithoutCancel(ctx), name)
		return n, err
	}
	if err := wc.Close(); err != nil {
		return n, err
	}
	return n, nil
}

// extract unpacks the stored archive into target, creating target first.
// Concurrent extractions are bounded by s.extractions.
func (s *Server) extract(ctx context.Context, name, target string) (archive.Manifest, error) {
	if err := s.extractions.Acquire(ctx, 1); err != nil {
		return archive.Manifest{}, err
	}
	defer s.extractions.Release(1)

	if err := s.root.MkdirAll(ctx, target); err != nil {
		return archive.Manifest{}, err
	}

	obj, err := s.root.Open(ctx, name)
	if err != nil {
		return archive.Manifest{}, err
	}
	defer obj.Close()

	return s.extractor.Extract(ctx, obj, obj.Info().Size, s.root, target)
}
