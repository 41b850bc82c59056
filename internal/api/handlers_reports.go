package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trialbridge/trialbridge/internal/platform/observability"
	db "github.com/trialbridge/trialbridge/internal/storage"
)

type createReportRequest struct {
	TargetType string `json:"target_type" binding:"required,oneof=post comment"`
	TargetID   string `json:"target_id" binding:"required,uuid"`
	Reason     string `json:"reason" binding:"required"`
	Details    string `json:"details"`
}

func (s *Server) handleCreateReport(c *gin.Context) {
	var req createReportRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := s.db.CreateReport(c.Request.Context(), currentUserID(c),
		req.TargetType, req.TargetID, req.Reason, req.Details)
	if err != nil {
		s.respondStorageError(c, err, "target not found", "you already reported this content")
		return
	}

	observability.ReportsTotal.WithLabelValues(req.TargetType).Inc()

	// Threshold evaluation runs inline so crossing it flags the content in
	// the same request. The periodic sweep covers anything missed here.
	flagged, err := s.reports.EvaluateTarget(c.Request.Context(), req.TargetType, req.TargetID)
	if err != nil {
		s.logger.Error().Err(err).Msg("evaluate report threshold")
	}

	c.JSON(http.StatusCreated, gin.H{"report": report, "content_flagged": flagged})
}

func (s *Server) handleListReports(c *gin.Context) {
	page, err := s.db.ListReports(c.Request.Context(), c.Query("status"),
		queryInt(c, "page", 1), queryInt(c, "limit", 0))
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, page)
}

type resolveReportRequest struct {
	Status         string `json:"status" binding:"required,oneof=reviewed resolved"`
	ResolutionNote string `json:"resolution_note"`
}

func (s *Server) handleResolveReport(c *gin.Context) {
	var req resolveReportRequest
	if !bindJSON(c, &req) {
		return
	}

	err := s.db.ResolveReport(c.Request.Context(), c.Param("id"), currentUserID(c), req.Status, req.ResolutionNote)
	if err != nil {
		s.respondStorageError(c, err, "report not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

type moderationRequest struct {
	TargetType string `json:"target_type" binding:"required,oneof=post comment"`
	TargetID   string `json:"target_id" binding:"required,uuid"`
	Status     string `json:"status" binding:"required,oneof=pending approved flagged removed"`
}

func (s *Server) handleSetModerationStatus(c *gin.Context) {
	var req moderationRequest
	if !bindJSON(c, &req) {
		return
	}

	err := s.db.SetModerationStatus(c.Request.Context(), req.TargetType, req.TargetID, req.Status)
	if err != nil {
		s.respondStorageError(c, err, "content not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s *Server) handleListPendingVerifications(c *gin.Context) {
	items, err := s.db.ListPendingVerifications(c.Request.Context())
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

type reviewVerificationRequest struct {
	Status          string `json:"status" binding:"required,oneof=approved rejected"`
	RejectionReason string `json:"rejection_reason"`
}

func (s *Server) handleReviewVerification(c *gin.Context) {
	var req reviewVerificationRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.Status == db.VerificationRejected && req.RejectionReason == "" {
		badRequest(c, "rejection_reason is required when rejecting")
		return
	}

	v, err := s.db.ReviewVerification(c.Request.Context(), c.Param("id"), currentUserID(c), req.Status, req.RejectionReason)
	if err != nil {
		s.respondStorageError(c, err, "verification not found", "")
		return
	}

	title := "Your clinician verification was approved"
	if req.Status == db.VerificationRejected {
		title = "Your clinician verification was rejected"
	}

	if _, err := s.db.InsertNotification(c.Request.Context(), v.UserID,
		db.NotificationModeration, title, req.RejectionReason, nil); err != nil {
		s.logger.Warn().Err(err).Msg("notify verification decision")
	}

	c.JSON(http.StatusOK, v)
}
