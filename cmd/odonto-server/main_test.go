package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/odonto/odonto/internal/config"
	"github.com/odonto/odonto/internal/domain/odontogram"
	"github.com/odonto/odonto/internal/domain/scheduling"
	"github.com/odonto/odonto/internal/platform/apperr"
	"github.com/odonto/odonto/internal/platform/auth"
	"github.com/odonto/odonto/internal/platform/civil"
	"github.com/odonto/odonto/internal/platform/middleware"
	"github.com/odonto/odonto/internal/platform/telemetry"
)

var errDown = errors.New("connection refused")

type emptyEvents struct{}

func (emptyEvents) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]odontogram.ClinicalEvent, error) {
	return nil, nil
}

func (emptyEvents) ListByTooth(ctx context.Context, patientID uuid.UUID, tooth odontogram.ToothID) ([]odontogram.ClinicalEvent, error) {
	return nil, nil
}

func (emptyEvents) Append(ctx context.Context, e *odontogram.ClinicalEvent) error {
	return apperr.Transient("append clinical event", errDown)
}

type downSchedules struct{}

func (downSchedules) Get(ctx context.Context, practitionerID uuid.UUID) (*scheduling.ScheduleConfig, error) {
	return nil, apperr.Transient("get schedule config", errDown)
}

func (downSchedules) Upsert(ctx context.Context, cfg *scheduling.ScheduleConfig) error {
	return apperr.Transient("upsert schedule config", errDown)
}

type downAppointments struct{}

func (downAppointments) GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	return nil, apperr.Transient("get appointment", errDown)
}

func (downAppointments) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]scheduling.Appointment, error) {
	return nil, apperr.Transient("list appointments", errDown)
}

func (downAppointments) Insert(ctx context.Context, a *scheduling.Appointment) error {
	return apperr.Transient("insert appointment", errDown)
}

func (downAppointments) UpdateTiming(ctx context.Context, a *scheduling.Appointment) error {
	return apperr.Transient("update appointment timing", errDown)
}

func (downAppointments) UpdateStatus(ctx context.Context, a *scheduling.Appointment) error {
	return apperr.Transient("update appointment status", errDown)
}

func (downAppointments) WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error {
	return apperr.Transient("lock practitioner calendar", errDown)
}

func testConfig(env string) *config.Config {
	return &config.Config{
		Port:               "0",
		Env:                env,
		LogLevel:           "debug",
		CORSOrigins:        []string{"http://localhost:3000"},
		RateLimitRPS:       100,
		RateLimitBurst:     100,
		RequestTimeout:     5 * time.Second,
		ClinicTimezone:     "UTC",
		DefaultSlotMinutes: 30,
		MetricsEnabled:     true,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	e, err := newEcho(app{
		cfg:          cfg,
		logger:       zerolog.Nop(),
		metrics:      telemetry.New(),
		clock:        civil.FixedClock{T: time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)},
		events:       emptyEvents{},
		schedules:    downSchedules{},
		appointments: downAppointments{},
	})
	if err != nil {
		t.Fatalf("newEcho: %v", err)
	}
	return e
}

func do(h http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestApp(t, testConfig("development"))
	rec := do(h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestDevAuth_ChartReadable(t *testing.T) {
	h := newTestApp(t, testConfig("development"))
	rec := do(h, http.MethodGet, "/api/v1/patients/"+uuid.NewString()+"/chart", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUnavailableStore_RetryAfter(t *testing.T) {
	h := newTestApp(t, testConfig("development"))
	rec := do(h, http.MethodGet, "/api/v1/practitioners/"+uuid.NewString()+"/schedule", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Retry-After"); got != retryAfterSeconds {
		t.Errorf("expected Retry-After %q, got %q", retryAfterSeconds, got)
	}
}

func TestRoleEnforcement(t *testing.T) {
	h := newTestApp(t, testConfig("development"))
	header := http.Header{"X-Dev-Role": {auth.RoleAssistant}}
	rec := do(h, http.MethodPut, "/api/v1/practitioners/"+uuid.NewString()+"/schedule", header)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for assistant editing a schedule, got %d", rec.Code)
	}
}

func signToken(t *testing.T, key string, roles ...string) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dr-lopez",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestJWTAuth(t *testing.T) {
	cfg := testConfig("production")
	cfg.AuthSigningKey = "test-signing-key"
	h := newTestApp(t, cfg)
	path := "/api/v1/patients/" + uuid.NewString() + "/chart"

	if rec := do(h, http.MethodGet, path, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	token := signToken(t, cfg.AuthSigningKey, auth.RoleDentist)
	rec := do(h, http.MethodGet, path, http.Header{"Authorization": {"Bearer " + token}})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}

	wrong := signToken(t, "another-key", auth.RoleDentist)
	if rec := do(h, http.MethodGet, path, http.Header{"Authorization": {"Bearer " + wrong}}); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a token signed with another key, got %d", rec.Code)
	}

	if rec := do(h, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health must not require a token, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestApp(t, testConfig("development"))
	do(h, http.MethodGet, "/health", nil)

	rec := do(h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Error("expected http_requests_total in metrics output")
	}
}

func TestNewEcho_InvalidTimezone(t *testing.T) {
	cfg := testConfig("development")
	cfg.ClinicTimezone = "Mars/Olympus_Mons"
	_, err := newEcho(app{cfg: cfg, logger: zerolog.Nop()})
	if err == nil {
		t.Fatal("expected error for an unknown timezone")
	}
}

func TestAuditRecorder_ReceivesAPIRequests(t *testing.T) {
	var entries []middleware.AuditEntry
	e, err := newEcho(app{
		cfg:          testConfig("development"),
		logger:       zerolog.Nop(),
		clock:        civil.FixedClock{T: time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)},
		events:       emptyEvents{},
		schedules:    downSchedules{},
		appointments: downAppointments{},
		audit: middleware.AuditRecorderFunc(func(entry middleware.AuditEntry) error {
			entries = append(entries, entry)
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("newEcho: %v", err)
	}

	patientID := uuid.NewString()
	do(e, http.MethodGet, "/health", nil)
	if rec := do(e, http.MethodGet, "/api/v1/patients/"+patientID+"/chart", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Action != "read" || got.PatientID != patientID || got.StatusCode != http.StatusOK {
		t.Errorf("unexpected entry: %+v", got)
	}
	if !strings.HasPrefix(got.Route, "/api/v1/patients/:patient_id") {
		t.Errorf("unexpected route: %s", got.Route)
	}
}

func TestMigrationSource(t *testing.T) {
	for _, name := range []string{"001_core.sql", "002_audit.sql"} {
		if _, err := fs.Stat(migrationSource(""), name); err != nil {
			t.Errorf("embedded migrations: %v", err)
		}
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "003_extra.sql"), []byte("SELECT 1;"), 0o600); err != nil {
		t.Fatal(err)
	}
	src := migrationSource(dir)
	if _, err := fs.Stat(src, "003_extra.sql"); err != nil {
		t.Errorf("directory migrations: %v", err)
	}
	if _, err := fs.Stat(src, "001_core.sql"); err == nil {
		t.Error("an explicit directory must replace the embedded set")
	}
}

func TestNewLogger_Level(t *testing.T) {
	cfg := testConfig("production")
	cfg.LogLevel = "warn"
	if got := newLogger(cfg).GetLevel(); got != zerolog.WarnLevel {
		t.Errorf("expected warn, got %s", got)
	}
	cfg.LogLevel = "nonsense"
	if got := newLogger(cfg).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %s", got)
	}
}
