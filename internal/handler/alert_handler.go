package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

type alertService interface {
	List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, *models.Pagination, error)
	MarkRead(ctx context.Context, id string) error
}

type lifecycleScanner interface {
	Scan(ctx context.Context, now time.Time) (dto.ScanResult, error)
}

// AlertHandler exposes operator alerts and the on-demand lifecycle scan.
type AlertHandler struct {
	alerts  alertService
	scanner lifecycleScanner
}

// NewAlertHandler constructs AlertHandler.
func NewAlertHandler(alerts alertService, scanner lifecycleScanner) *AlertHandler {
	return &AlertHandler{alerts: alerts, scanner: scanner}
}

// List godoc
// @Summary List alerts
// @Tags Alerts
// @Produce json
// @Param type query string false "Alert type"
// @Param unread query bool false "Only unread alerts"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	filter := models.AlertFilter{Type: models.AlertType(c.Query("type"))}
	if raw := c.Query("unread"); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unread must be a boolean"))
			return
		}
		filter.Unread = &unread
	}
	filter.Page, filter.PageSize = pageParams(c)

	alerts, pagination, err := h.alerts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, pagination)
}

// MarkRead godoc
// @Summary Mark alert as read
// @Tags Alerts
// @Param id path string true "Alert ID"
// @Success 204
// @Router /alerts/{id}/read [post]
func (h *AlertHandler) MarkRead(c *gin.Context) {
	if err := h.alerts.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Scan godoc
// @Summary Run the class lifecycle scan now
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /alerts/scan [post]
func (h *AlertHandler) Scan(c *gin.Context) {
	result, err := h.scanner.Scan(c.Request.Context(), time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
