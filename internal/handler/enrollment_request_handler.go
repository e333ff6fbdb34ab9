package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

type enrollmentRequestService interface {
	Create(ctx context.Context, req dto.CreateEnrollmentRequest, actor models.Actor) (*models.EnrollmentRequest, error)
	Get(ctx context.Context, id string) (*models.EnrollmentRequest, error)
	ListPending(ctx context.Context) ([]models.EnrollmentRequest, error)
	Approve(ctx context.Context, id string, req dto.ApproveEnrollmentRequest, actor models.Actor) (*models.EnrollmentRequest, *models.Enrollment, error)
	Reject(ctx context.Context, id string, req dto.RejectEnrollmentRequest, actor models.Actor) (*models.EnrollmentRequest, error)
}

// EnrollmentRequestHandler exposes the request review workflow.
type EnrollmentRequestHandler struct {
	requests enrollmentRequestService
}

// NewEnrollmentRequestHandler constructs EnrollmentRequestHandler.
func NewEnrollmentRequestHandler(requests enrollmentRequestService) *EnrollmentRequestHandler {
	return &EnrollmentRequestHandler{requests: requests}
}

// Create godoc
// @Summary Submit an enrollment request
// @Tags EnrollmentRequests
// @Accept json
// @Produce json
// @Param payload body dto.CreateEnrollmentRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /enrollment-requests [post]
func (h *EnrollmentRequestHandler) Create(c *gin.Context) {
	var req dto.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	created, err := h.requests.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ListPending godoc
// @Summary List pending enrollment requests
// @Tags EnrollmentRequests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests [get]
func (h *EnrollmentRequestHandler) ListPending(c *gin.Context) {
	list, err := h.requests.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// Get godoc
// @Summary Get enrollment request
// @Tags EnrollmentRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests/{id} [get]
func (h *EnrollmentRequestHandler) Get(c *gin.Context) {
	req, err := h.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Approve godoc
// @Summary Approve an enrollment request
// @Tags EnrollmentRequests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ApproveEnrollmentRequest false "Approval payload"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests/{id}/approve [post]
func (h *EnrollmentRequestHandler) Approve(c *gin.Context) {
	var req dto.ApproveEnrollmentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	decided, enrollment, err := h.requests.Approve(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"request": decided, "enrollment": enrollment}, nil)
}

// Reject godoc
// @Summary Reject an enrollment request
// @Tags EnrollmentRequests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RejectEnrollmentRequest true "Rejection payload"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests/{id}/reject [post]
func (h *EnrollmentRequestHandler) Reject(c *gin.Context) {
	var req dto.RejectEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	decided, err := h.requests.Reject(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decided, nil)
}
