package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	db "github.com/trialbridge/trialbridge/internal/storage"
)

func (s *Server) handleListResources(c *gin.Context) {
	page, err := s.db.ListResources(c.Request.Context(), db.ResourceListParams{
		Search:       c.Query("q"),
		ResourceType: c.Query("type"),
		Category:     c.Query("category"),
		Language:     c.Query("language"),
		FeaturedOnly: c.Query("featured") == "true",
		Page:         queryInt(c, "page", 1),
		Limit:        queryInt(c, "limit", 0),
	})
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, page)
}

type createResourceRequest struct {
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	ResourceType string `json:"resource_type" binding:"required,oneof=article video pdf link toolkit"`
	Category     string `json:"category"`
	Language     string `json:"language"`
	FileURL      string `json:"file_url"`
	IsFeatured   bool   `json:"is_featured"`
	RequiresAuth bool   `json:"requires_auth"`
}

func (s *Server) handleCreateResource(c *gin.Context) {
	var req createResourceRequest
	if !bindJSON(c, &req) {
		return
	}

	resource, err := s.db.CreateResource(c.Request.Context(), db.Resource{
		Title:        req.Title,
		Description:  req.Description,
		ResourceType: req.ResourceType,
		Category:     req.Category,
		Language:     req.Language,
		FileURL:      req.FileURL,
		IsFeatured:   req.IsFeatured,
		RequiresAuth: req.RequiresAuth,
	})
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusCreated, resource)
}

func (s *Server) handleGetResource(c *gin.Context) {
	resource, err := s.db.GetResourceByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondStorageError(c, err, "resource not found", "")
		return
	}

	if resource.RequiresAuth && currentUserID(c) == "" {
		respondError(c, http.StatusUnauthorized, "unauthorized", "sign in to access this resource")
		return
	}

	c.JSON(http.StatusOK, resource)
}

type rateResourceRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Review string `json:"review"`
}

func (s *Server) handleRateResource(c *gin.Context) {
	var req rateResourceRequest
	if !bindJSON(c, &req) {
		return
	}

	err := s.db.RateResource(c.Request.Context(), c.Param("id"), currentUserID(c), req.Rating, req.Review)
	if err != nil {
		s.respondStorageError(c, err, "resource not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "rated"})
}

// handleDownloadResource counts a download and returns the file location.
func (s *Server) handleDownloadResource(c *gin.Context) {
	resource, err := s.db.GetResourceByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondStorageError(c, err, "resource not found", "")
		return
	}

	if resource.RequiresAuth && currentUserID(c) == "" {
		respondError(c, http.StatusUnauthorized, "unauthorized", "sign in to download this resource")
		return
	}

	if err := s.db.IncrementResourceDownloads(c.Request.Context(), resource.ID); err != nil {
		s.logger.Warn().Err(err).Msg("increment resource downloads")
	}

	c.JSON(http.StatusOK, gin.H{"file_url": resource.FileURL})
}
