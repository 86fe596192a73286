package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classtrace/classtrace-api/internal/dto"
	"github.com/classtrace/classtrace-api/internal/service"
	appErrors "github.com/classtrace/classtrace-api/pkg/errors"
	"github.com/classtrace/classtrace-api/pkg/response"
)

// RosterHandler exposes roster and alias management endpoints.
type RosterHandler struct {
	service *service.RosterService
}

// NewRosterHandler constructs handler.
func NewRosterHandler(svc *service.RosterService) *RosterHandler {
	return &RosterHandler{service: svc}
}

// Create godoc
// @Summary Create a roster
// @Description Create a course roster from an inline entry list
// @Tags Rosters
// @Accept json
// @Produce json
// @Param payload body dto.CreateRosterRequest true "Roster payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rosters [post]
func (h *RosterHandler) Create(c *gin.Context) {
	var req dto.CreateRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid roster payload"))
		return
	}

	detail, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Import godoc
// @Summary Import a roster from CSV
// @Description Upload a roster CSV file for a course
// @Tags Rosters
// @Accept multipart/form-data
// @Produce json
// @Param course formData string true "Course code"
// @Param file formData file true "Roster CSV"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rosters/import [post]
func (h *RosterHandler) Import(c *gin.Context) {
	course := c.PostForm("course")
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "roster file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read roster file"))
		return
	}
	defer file.Close() //nolint:errcheck

	detail, err := h.service.Import(c.Request.Context(), course, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Get godoc
// @Summary Get a roster with entries
// @Tags Rosters
// @Produce json
// @Param id path string true "Roster ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rosters/{id} [get]
func (h *RosterHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// List godoc
// @Summary List rosters
// @Tags Rosters
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /rosters [get]
func (h *RosterHandler) List(c *gin.Context) {
	var query struct {
		Page     int `form:"page"`
		PageSize int `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	rosters, pagination, err := h.service.List(c.Request.Context(), query.Page, query.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rosters, pagination)
}

// SetAlias godoc
// @Summary Set or clear a roster entry alias
// @Description Assign the Zoom display name alias for a student; send null to clear
// @Tags Rosters
// @Accept json
// @Produce json
// @Param id path string true "Roster ID"
// @Param entryId path string true "Roster entry ID"
// @Param payload body dto.SetAliasRequest true "Alias payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rosters/{id}/entries/{entryId}/alias [put]
func (h *RosterHandler) SetAlias(c *gin.Context) {
	var req dto.SetAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid alias payload"))
		return
	}

	entry, err := h.service.SetAlias(c.Request.Context(), c.Param("id"), c.Param("entryId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
