package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classtrace/classtrace-api/internal/dto"
	"github.com/classtrace/classtrace-api/internal/service"
	appErrors "github.com/classtrace/classtrace-api/pkg/errors"
	"github.com/classtrace/classtrace-api/pkg/response"
)

// MeetingHandler exposes meeting reconciliation endpoints.
type MeetingHandler struct {
	service *service.MeetingService
}

// NewMeetingHandler constructs handler.
func NewMeetingHandler(svc *service.MeetingService) *MeetingHandler {
	return &MeetingHandler{service: svc}
}

// Reconcile godoc
// @Summary Reconcile a class meeting
// @Description Discover the meeting's data files, run attendance reconciliation and persist the result
// @Tags Meetings
// @Accept json
// @Produce json
// @Param payload body dto.ReconcileRequest true "Meeting schedule and threshold overrides"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /meetings/reconcile [post]
func (h *MeetingHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reconcile payload"))
		return
	}

	result, err := h.service.Reconcile(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get meeting metadata
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /meetings/{id} [get]
func (h *MeetingHandler) Get(c *gin.Context) {
	meeting, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meeting, nil)
}

// Result godoc
// @Summary Get a meeting's reconciliation result
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /meetings/{id}/result [get]
func (h *MeetingHandler) Result(c *gin.Context) {
	result, err := h.service.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Summary godoc
// @Summary Get a meeting's per-student summary rows
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /meetings/{id}/summary [get]
func (h *MeetingHandler) Summary(c *gin.Context) {
	result, err := h.service.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Summaries, nil)
}

// Periods godoc
// @Summary Get a meeting's detected question periods
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /meetings/{id}/periods [get]
func (h *MeetingHandler) Periods(c *gin.Context) {
	result, err := h.service.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Periods, nil)
}

// UnknownNames godoc
// @Summary Get unrecognised participant names from a meeting
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /meetings/{id}/unknown-names [get]
func (h *MeetingHandler) UnknownNames(c *gin.Context) {
	result, err := h.service.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.UnknownNames, nil)
}

// List godoc
// @Summary List meetings
// @Tags Meetings
// @Produce json
// @Param course query string false "Filter by course"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /meetings [get]
func (h *MeetingHandler) List(c *gin.Context) {
	var query dto.ListMeetingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	meetings, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meetings, pagination)
}
