package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	db "github.com/trialbridge/trialbridge/internal/storage"
)

func (s *Server) handleListEvents(c *gin.Context) {
	events, err := s.db.ListUpcomingEvents(c.Request.Context(), c.Query("type"), queryInt(c, "limit", 0))
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": events})
}

type createEventRequest struct {
	OrganizationID *string    `json:"organization_id" binding:"omitempty,uuid"`
	Title          string     `json:"title" binding:"required"`
	Description    string     `json:"description"`
	EventType      string     `json:"event_type" binding:"required,oneof=webinar conference support_group fundraiser"`
	Location       string     `json:"location"`
	IsVirtual      *bool      `json:"is_virtual"`
	Capacity       int        `json:"capacity" binding:"omitempty,min=0"`
	StartsAt       time.Time  `json:"starts_at" binding:"required"`
	EndsAt         *time.Time `json:"ends_at"`
}

func (s *Server) handleCreateEvent(c *gin.Context) {
	var req createEventRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.OrganizationID != nil && !s.requireOrgAdmin(c, *req.OrganizationID) {
		return
	}

	isVirtual := true
	if req.IsVirtual != nil {
		isVirtual = *req.IsVirtual
	}

	event, err := s.db.CreateEvent(c.Request.Context(), currentUserID(c), db.Event{
		OrganizationID: req.OrganizationID,
		Title:          req.Title,
		Description:    req.Description,
		EventType:      req.EventType,
		Location:       req.Location,
		IsVirtual:      isVirtual,
		Capacity:       req.Capacity,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
	})
	if err != nil {
		s.respondStorageError(c, err, "organization not found", "")
		return
	}

	c.JSON(http.StatusCreated, event)
}

func (s *Server) handleGetEvent(c *gin.Context) {
	event, err := s.db.GetEventByID(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "event not found", "")
		return
	}

	c.JSON(http.StatusOK, event)
}

func (s *Server) handleRegisterForEvent(c *gin.Context) {
	err := s.db.RegisterForEvent(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "event not found", "already registered for this event")
		return
	}

	s.logActivity(c, "event_registered", "event", c.Param("id"))
	c.JSON(http.StatusCreated, gin.H{"status": "registered"})
}

func (s *Server) handleUnregisterFromEvent(c *gin.Context) {
	err := s.db.UnregisterFromEvent(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "not registered for this event", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "unregistered"})
}
