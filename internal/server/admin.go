package server

import (
	"embed"
	"html/template"
	"log"
	"net/http"
)

//go:embed templates/admin.html
var templateFS embed.FS

var adminTmpl = template.Must(template.ParseFS(templateFS, "templates/admin.html"))

type adminView struct {
	Version   string
	UploadURL string
	ListURL   string
	DeleteURL string
	FilesBase string
}

// withQuery appends the request's query string to path so the access flag
// is forwarded to the routes the page calls.
func withQuery(r *http.Request, path string) string {
	if r.URL.RawQuery == "" {
		return path
	}
	return path + "?" + r.URL.RawQuery
}

// adminPage handles GET /admin.
func (s *Server) adminPage(w http.ResponseWriter, r *http.Request) {
	view := adminView{
		Version:   s.build.Version,
		UploadURL: withQuery(r, "/upload"),
		ListURL:   withQuery(r, "/list-files"),
		DeleteURL: withQuery(r, "/delete-file"),
		FilesBase: "/files/",
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := adminTmpl.Execute(w, view); err != nil {
		log.Printf("rid=%s msg=render_admin err=%v", RequestIDFromContext(r.Context()), err)
	}
}
