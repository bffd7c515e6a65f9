package server

import "net/http"

// AccessPolicy decides whether a request may reach an administrative route.
type AccessPolicy interface {
	Allow(r *http.Request) bool
}

// AccessFunc adapts a plain function to AccessPolicy.
type AccessFunc func(r *http.Request) bool

func (f AccessFunc) Allow(r *http.Request) bool { return f(r) }

// QueryFlagPolicy allows requests whose query parameter Param equals Value.
// It is a placeholder gate, not authentication: anyone who knows the flag
// gets in.
type QueryFlagPolicy struct {
	Param string
	Value string
}

func (p QueryFlagPolicy) Allow(r *http.Request) bool {
	return r.URL.Query().Get(p.Param) == p.Value
}

// DefaultAccessPolicy allows requests carrying ?admin=true.
func DefaultAccessPolicy() QueryFlagPolicy {
	return QueryFlagPolicy{Param: "admin", Value: "true"}
}

// requireAccess rejects requests the access policy denies with 403 before
// next runs.
func (s *Server) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.access.Allow(r) {
			s.metrics.RecordAccessDenied()
			s.recordAudit(r, AuditLog{
				Action:   AuditActionAccessDenied,
				Resource: r.URL.Path,
				Success:  false,
				ErrorMsg: "forbidden",
			})
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
