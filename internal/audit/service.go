// Package audit records administrative changes to promotions and pricing
// settings.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/db"
	"github.com/noah-isme/backend-resto/internal/obs"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	ActorKindAdmin     ActorKind = "admin"
	ActorKindSystem    ActorKind = "system"
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind ActorKind
	ID   string
}

// Entry is one stored audit record.
type Entry struct {
	ID           int64           `json:"id"`
	ActorKind    string          `json:"actorKind"`
	ActorID      string          `json:"actorId,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Status       int             `json:"status"`
	IP           string          `json:"ip,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Store defines the database operations required for auditing.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, limit, offset int) ([]Entry, error)
}

// Service persists audit logs for admin flows.
type Service struct {
	Store   Store
	Enabled bool
}

// Record persists an audit log entry when auditing is enabled.
func (s Service) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.Route(req)
	if route == obs.UnmatchedRoute {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}
	return s.Store.Insert(ctx, Entry{
		ActorKind:    string(normalizeActorKind(actor.Kind)),
		ActorID:      strings.TrimSpace(actor.ID),
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   strings.TrimSpace(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Status:       status,
		IP:           common.ClientIP(req),
		RequestID:    requestID(req),
		Metadata:     toJSONB(metadata, req.URL.RawQuery),
	})
}

func buildAction(action, method, route string) string {
	trimmed := strings.TrimSpace(action)
	if trimmed != "" {
		return trimmed
	}
	target := route
	if target == "" {
		target = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + target
}

func buildResource(resourceType, route string) string {
	trimmed := strings.TrimSpace(resourceType)
	if trimmed != "" {
		return trimmed
	}
	route = strings.TrimSpace(route)
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(strings.Trim(route, "/"), "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		return strings.Join(segments[2:], ".")
	}
	return strings.ReplaceAll(strings.Trim(route, "/"), "/", ".")
}

func normalizeActorKind(kind ActorKind) ActorKind {
	switch kind {
	case ActorKindAdmin, ActorKindSystem:
		return kind
	default:
		return ActorKindAnonymous
	}
}

func toJSONB(metadata []byte, query string) []byte {
	if len(metadata) > 0 {
		return metadata
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	data, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil
	}
	return data
}

// PostgresStore keeps entries in the audit_logs table.
type PostgresStore struct {
	DB db.DBTX
}

// Insert writes e.
func (s *PostgresStore) Insert(ctx context.Context, e Entry) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO audit_logs (actor_kind, actor_id, action, resource_type, resource_id,
		method, path, status, ip, request_id, metadata)
		VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)`,
		e.ActorKind, e.ActorID, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path, e.Status, e.IP, e.RequestID, nullJSON(e.Metadata))
	return err
}

// List returns entries newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, actor_kind, COALESCE(actor_id, ''), action, resource_type,
		COALESCE(resource_id, ''), method, path, status, COALESCE(ip, ''), COALESCE(request_id, ''), metadata, created_at
		FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Entry, 0)
	for rows.Next() {
		var (
			e    Entry
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorKind, &e.ActorID, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Method, &e.Path, &e.Status, &e.IP, &e.RequestID, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Metadata = meta
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}
