package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrigpt/backend/internal/services"
	"github.com/agrigpt/backend/pkg/response"
)

// ReportHandler exposes crop report generation and retrieval.
type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

type createReportRequest struct {
	CropName string `json:"crop_name" validate:"required,max=100"`
	Region   string `json:"region" validate:"required,max=100"`
	Language string `json:"language" validate:"omitempty,max=20"`
}

// POST /api/reports
func (h *ReportHandler) Create(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req createReportRequest
	if !bindAndValidate(c, &req) {
		return
	}

	report, err := h.reports.Create(requestContext(c), id, services.ReportRequest{
		CropName: req.CropName,
		Region:   req.Region,
		Language: req.Language,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, report)
}

// GET /api/reports
func (h *ReportHandler) List(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	reports, err := h.reports.List(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, reports)
}

// GET /api/reports/:id
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	report, err := h.reports.Get(requestContext(c), id, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, report)
}

// DELETE /api/reports/:id
func (h *ReportHandler) Delete(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	if err := h.reports.Delete(requestContext(c), id, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
