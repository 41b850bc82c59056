package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleListNotifications(c *gin.Context) {
	page, err := s.db.ListNotifications(c.Request.Context(), currentUserID(c),
		c.Query("unread") == "true", queryInt(c, "page", 1), queryInt(c, "limit", 0))
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	err := s.db.MarkNotificationRead(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "notification not found or already read", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

func (s *Server) handleMarkAllNotificationsRead(c *gin.Context) {
	count, err := s.db.MarkAllNotificationsRead(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked_read": count})
}
