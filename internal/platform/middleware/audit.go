package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/odonto/odonto/internal/platform/auth"
)

// AuditEntry records who touched which patient or practitioner record.
type AuditEntry struct {
	Timestamp      time.Time
	RequestID      string
	UserID         string
	UserRoles      []string
	Action         string
	Route          string
	PatientID      string
	PractitionerID string
	AppointmentID  string
	StatusCode     int
	RemoteIP       string
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error { return f(entry) }

// Audit emits an audit line for every /api/v1 request after the handler has
// run. Route parameters are read from the matched route, so it must be
// registered with e.Use rather than e.Pre.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			rid, _ := c.Get("request_id").(string)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			entry := AuditEntry{
				Timestamp:      time.Now().UTC(),
				RequestID:      rid,
				UserID:         auth.UserIDFromContext(req.Context()),
				UserRoles:      auth.RolesFromContext(req.Context()),
				Action:         methodToAction(req.Method),
				Route:          c.Path(),
				PatientID:      c.Param("patient_id"),
				PractitionerID: c.Param("practitioner_id"),
				AppointmentID:  c.Param("id"),
				StatusCode:     status,
				RemoteIP:       c.RealIP(),
			}

			if recorder != nil {
				if recErr := recorder.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", rid).Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("action", entry.Action).
				Str("route", entry.Route).
				Str("patient_id", entry.PatientID).
				Str("practitioner_id", entry.PractitionerID).
				Str("appointment_id", entry.AppointmentID).
				Int("status", entry.StatusCode).
				Str("remote_ip", entry.RemoteIP).
				Msg("record_access")

			return err
		}
	}
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
