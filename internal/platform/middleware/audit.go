package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
)

// AuditEntry records one access to a clinical resource: who touched which
// record, how, and with what outcome.
type AuditEntry struct {
	UserID     int64
	Role       string
	Resource   string
	RecordID   string
	Action     string
	Method     string
	Path       string
	IPAddress  string
	UserAgent  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

var auditedResources = map[string]bool{
	"patients":     true,
	"doctors":      true,
	"appointments": true,
}

// Audit emits an "access" log line for every request that touches a
// patient, doctor or appointment route, after the handler has run so the
// status and resolved actor are known.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			resource, recordID, ok := auditTarget(c.Request().URL.Path)
			if !ok {
				return next(c)
			}

			err := next(c)

			req := c.Request()
			entry := AuditEntry{
				Resource:   resource,
				RecordID:   recordID,
				Action:     auditAction(req.Method, recordID),
				Method:     req.Method,
				Path:       req.URL.Path,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				RequestID:  requestID(c),
				StatusCode: responseStatus(c, err),
				Timestamp:  time.Now().UTC(),
			}
			if actor, ok := auth.ActorFromContext(req.Context()); ok {
				entry.UserID = actor.UserID
				entry.Role = string(actor.Role)
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}

			evt := logger.Info()
			if entry.StatusCode == http.StatusForbidden {
				evt = logger.Warn()
			}
			evt.
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Int64("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Str("record_id", entry.RecordID).
				Str("action", entry.Action).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("access")

			return err
		}
	}
}

// auditTarget splits /api/<resource>[/<id>] paths. Sub-routes such as
// /api/patients/me and /api/patients/register report their last segment
// as the record.
func auditTarget(path string) (resource, recordID string, ok bool) {
	rest, found := strings.CutPrefix(path, "/api/")
	if !found {
		return "", "", false
	}
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if !auditedResources[segments[0]] {
		return "", "", false
	}
	if len(segments) > 1 {
		recordID = segments[1]
	}
	return segments[0], recordID, true
}

func auditAction(method, recordID string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	if recordID == "" {
		return "list"
	}
	return "read"
}
