package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionUpload       AuditAction = "upload"
	AuditActionExtract      AuditAction = "extract"
	AuditActionDelete       AuditAction = "delete"
	AuditActionAccessDenied AuditAction = "access_denied"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    AuditAction    `json:"action"`
	RequestID string         `json:"request_id,omitempty"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent,omitempty"`
	Resource  string         `json:"resource,omitempty"` // entry name or request path
	Details   map[string]any `json:"details,omitempty"`
	Success   bool           `json:"success"`
	ErrorMsg  string         `json:"error_message,omitempty"`
}

// AuditFilters for querying audit logs
type AuditFilters struct {
	Action    AuditAction
	Resource  string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// AuditStore persists audit entries.
type AuditStore interface {
	Record(ctx context.Context, entry AuditLog) error
	Recent(ctx context.Context, filters AuditFilters) ([]AuditLog, error)
	// Prune deletes entries older than before and returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLAuditStore stores audit entries in the audit_logs table.
type SQLAuditStore struct {
	db *sql.DB
}

func NewSQLAuditStore(db *sql.DB) *SQLAuditStore {
	return &SQLAuditStore{db: db}
}

func (a *SQLAuditStore) Record(ctx context.Context, entry AuditLog) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, timestamp, action, request_id, ip_address,
			user_agent, resource, details, success, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		entry.ID,
		entry.Timestamp,
		entry.Action,
		nullString(entry.RequestID),
		entry.IPAddress,
		nullString(entry.UserAgent),
		nullString(entry.Resource),
		detailsJSON,
		entry.Success,
		nullString(entry.ErrorMsg),
	)
	return err
}

// buildAuditQuery renders the filtered SELECT and its arguments.
func buildAuditQuery(filters AuditFilters) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, timestamp, action, request_id, ip_address,
		user_agent, resource, details, success, error_message
		FROM audit_logs
		WHERE 1=1`)

	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		fmt.Fprintf(&sb, " AND %s $%d", cond, len(args))
	}

	if filters.Action != "" {
		add("action =", filters.Action)
	}
	if filters.Resource != "" {
		add("resource =", filters.Resource)
	}
	if !filters.StartTime.IsZero() {
		add("timestamp >=", filters.StartTime)
	}
	if !filters.EndTime.IsZero() {
		add("timestamp <=", filters.EndTime)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY timestamp DESC LIMIT $%d", len(args))

	return sb.String(), args
}

func (a *SQLAuditStore) Recent(ctx context.Context, filters AuditFilters) ([]AuditLog, error) {
	query, args := buildAuditQuery(filters)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]AuditLog, 0)
	for rows.Next() {
		var entry AuditLog
		var detailsJSON []byte
		var requestID, userAgent, resource, errorMsg sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.Action,
			&requestID,
			&entry.IPAddress,
			&userAgent,
			&resource,
			&detailsJSON,
			&entry.Success,
			&errorMsg,
		); err != nil {
			return nil, err
		}

		entry.RequestID = requestID.String
		entry.UserAgent = userAgent.String
		entry.Resource = resource.String
		entry.ErrorMsg = errorMsg.String

		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &entry.Details)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (a *SQLAuditStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE timestamp < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// nullString helper for nullable strings
func nullString(s string) sql.NullString {
	return sql.NullString{
		String: s,
		Valid:  s != "",
	}
}

// recordAudit fills in the request fields and stores entry. Failures are
// logged and never affect the response.
func (s *Server) recordAudit(r *http.Request, entry AuditLog) {
	if s.audit == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = time.Now().UTC()
	entry.RequestID = RequestIDFromContext(r.Context())
	entry.IPAddress = clientIP(r)
	entry.UserAgent = r.UserAgent()

	// The request may already be cancelled when the client hung up.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
	defer cancel()

	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Warn("audit record failed", map[string]any{
			"request_id": entry.RequestID,
			"action":     entry.Action,
			"error":      err.Error(),
		})
	}
}

// auditHandler handles GET /admin/audit?limit=N&action=...&since=RFC3339&until=RFC3339
func (s *Server) auditHandler(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.Error(w, "audit trail not enabled", http.StatusNotFound)
		return
	}

	filters := AuditFilters{
		Action:   AuditAction(r.URL.Query().Get("action")),
		Resource: r.URL.Query().Get("resource"),
		Limit:    defaultAuditLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		filters.Limit = min(n, maxAuditLimit)
	}
	for param, dst := range map[string]*time.Time{"since": &filters.StartTime, "until": &filters.EndTime} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "bad "+param, http.StatusBadRequest)
			return
		}
		*dst = ts
	}
	if !filters.StartTime.IsZero() && !filters.EndTime.IsZero() && filters.EndTime.Before(filters.StartTime) {
		http.Error(w, "until is before since", http.StatusBadRequest)
		return
	}

	logs, err := s.audit.Recent(r.Context(), filters)
	if err != nil {
		s.log.Error("audit query failed", map[string]any{"request_id": RequestIDFromContext(r.Context())}, err)
		http.Error(w, "audit query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
