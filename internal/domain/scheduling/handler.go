package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/odonto/odonto/internal/platform/apperr"
	"github.com/odonto/odonto/internal/platform/auth"
	"github.com/odonto/odonto/internal/platform/civil"
	"github.com/odonto/odonto/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – all clinic staff
	readGroup := api.Group("", auth.RequireRole(auth.StaffRoles...))
	readGroup.GET("/practitioners/:practitioner_id/schedule", h.GetSchedule)
	readGroup.GET("/practitioners/:practitioner_id/slots", h.GetSlots)
	readGroup.GET("/practitioners/:practitioner_id/appointments", h.ListAppointments)
	readGroup.GET("/appointments/:id", h.GetAppointment)

	// Booking endpoints – front desk and dentists
	bookGroup := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleDentist))
	bookGroup.POST("/appointments", h.CreateAppointment)
	bookGroup.PUT("/appointments/:id/timing", h.RescheduleAppointment)
	bookGroup.POST("/appointments/:id/cancel", h.CancelAppointment)
	bookGroup.POST("/appointments/:id/status", h.TransitionAppointment)

	// Working hours – admin only
	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.PUT("/practitioners/:practitioner_id/schedule", h.PutSchedule)
}

// respond maps a service error to an HTTP response. Rejections are a normal
// outcome of booking and are answered with a 409 body naming the rule.
func respond(c echo.Context, err error) error {
	var rej *Rejection
	if errors.As(err, &rej) {
		return c.JSON(http.StatusConflict, rej)
	}
	return apperr.HTTPError(err)
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// parseInstant accepts RFC 3339 or a bare date, which means the start of that
// day in the clinic's zone.
func (h *Handler) parseInstant(name, raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+": expected RFC 3339 or YYYY-MM-DD")
	}
	return h.svc.Calendar().At(d, 0), nil
}

// -- Schedule Handlers --

func (h *Handler) GetSchedule(c echo.Context) error {
	pid, err := uuidParam(c, "practitioner_id")
	if err != nil {
		return err
	}
	cfg, err := h.svc.GetScheduleConfig(c.Request().Context(), pid)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) PutSchedule(c echo.Context) error {
	pid, err := uuidParam(c, "practitioner_id")
	if err != nil {
		return err
	}
	var cfg ScheduleConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cfg.PractitionerID = pid
	if err := h.svc.UpsertScheduleConfig(c.Request().Context(), &cfg); err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// -- Slot Handlers --

type slotsResponse struct {
	PractitionerID uuid.UUID   `json:"practitioner_id"`
	Date           civil.Date  `json:"date"`
	Slots          []time.Time `json:"slots"`
}

func (h *Handler) GetSlots(c echo.Context) error {
	pid, err := uuidParam(c, "practitioner_id")
	if err != nil {
		return err
	}
	date, err := civil.ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date query parameter must be YYYY-MM-DD")
	}
	slots, err := h.svc.GetBookableSlots(c.Request().Context(), pid, date)
	if err != nil {
		return respond(c, err)
	}
	if slots == nil {
		slots = []time.Time{}
	}
	return c.JSON(http.StatusOK, slotsResponse{PractitionerID: pid, Date: date, Slots: slots})
}

// -- Appointment Handlers --

type createAppointmentRequest struct {
	PatientID       uuid.UUID `json:"patient_id"`
	PractitionerID  uuid.UUID `json:"practitioner_id"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	Reason          string    `json:"reason"`
	Notes           string    `json:"notes"`
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var req createAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.SubmitBooking(c.Request().Context(), BookingRequest{
		PatientID:       req.PatientID,
		PractitionerID:  req.PractitionerID,
		Start:           req.Start,
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
		Notes:           req.Notes,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pid, err := uuidParam(c, "practitioner_id")
	if err != nil {
		return err
	}
	if c.QueryParam("from") == "" || c.QueryParam("to") == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to are required")
	}
	from, err := h.parseInstant("from", c.QueryParam("from"))
	if err != nil {
		return err
	}
	to, err := h.parseInstant("to", c.QueryParam("to"))
	if err != nil {
		return err
	}

	items, err := h.svc.ListAppointments(c.Request().Context(), pid, from, to)
	if err != nil {
		return respond(c, err)
	}
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(items, pg), len(items), pg.Limit, pg.Offset))
}

type rescheduleRequest struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Reschedule(c.Request().Context(), id, req.Start, req.DurationMinutes)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req cancelRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	a, err := h.svc.Cancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) TransitionAppointment(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	to, err := ParseStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Transition(c.Request().Context(), id, to)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, a)
}
