package odontogram

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/odonto/odonto/internal/platform/apperr"
	"github.com/odonto/odonto/internal/platform/auth"
	"github.com/odonto/odonto/internal/platform/civil"
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
	readGroup.GET("/patients/:patient_id/chart", h.GetChart)
	readGroup.GET("/patients/:patient_id/teeth/:tooth/history", h.GetToothHistory)

	// Write endpoints – dentists only
	writeGroup := api.Group("", auth.RequireRole(auth.RoleDentist))
	writeGroup.POST("/patients/:patient_id/teeth/:tooth/events", h.RecordEvent)
}

type chartResponse struct {
	PatientID uuid.UUID    `json:"patient_id"`
	AsOf      *civil.Date  `json:"as_of,omitempty"`
	Teeth     []ToothState `json:"teeth"`
}

type recordEventRequest struct {
	OccurredOn civil.Date `json:"occurred_on"`
	Condition  string     `json:"condition"`
	Note       string     `json:"note"`
}

func patientParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	return id, nil
}

func toothParam(c echo.Context) (ToothID, error) {
	t, err := ParseToothID(c.Param("tooth"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return t, nil
}

// GetChart returns the current chart, or the chart as of ?as_of=YYYY-MM-DD.
func (h *Handler) GetChart(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	resp := chartResponse{PatientID: patientID}
	var chart Chart
	if raw := c.QueryParam("as_of"); raw != "" {
		asOf, err := civil.ParseDate(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		resp.AsOf = &asOf
		chart, err = h.svc.GetChartAsOf(ctx, patientID, asOf)
		if err != nil {
			return apperr.HTTPError(err)
		}
	} else {
		chart, err = h.svc.GetCurrentChart(ctx, patientID)
		if err != nil {
			return apperr.HTTPError(err)
		}
	}
	resp.Teeth = chart.Teeth()
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetToothHistory(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	tooth, err := toothParam(c)
	if err != nil {
		return err
	}
	events, err := h.svc.ToothHistory(c.Request().Context(), patientID, tooth)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if events == nil {
		events = []ClinicalEvent{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tooth":   tooth,
		"name":    tooth.Describe(),
		"current": CurrentState(NewEventLog(events...)),
		"events":  events,
	})
}

func (h *Handler) RecordEvent(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	tooth, err := toothParam(c)
	if err != nil {
		return err
	}
	var req recordEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	e, err := h.svc.RecordEvent(ctx, RecordEventInput{
		PatientID:  patientID,
		ToothID:    tooth,
		OccurredOn: req.OccurredOn,
		Condition:  req.Condition,
		Note:       req.Note,
		RecordedBy: auth.UserIDFromContext(ctx),
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, e)
}
