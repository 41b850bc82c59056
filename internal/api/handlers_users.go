package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	db "github.com/trialbridge/trialbridge/internal/storage"
)

func (s *Server) handleGetMe(c *gin.Context) {
	profile, err := s.db.GetProfileByUserID(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "profile not found", "")
		return
	}

	c.JSON(http.StatusOK, profile)
}

type updateProfileRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
	Country     *string `json:"country"`
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	upd := db.ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		AvatarURL:   req.AvatarURL,
		Country:     req.Country,
	}

	if err := s.db.UpdateProfile(c.Request.Context(), currentUserID(c), upd); err != nil {
		s.respondStorageError(c, err, "profile not found", "")
		return
	}

	profile, err := s.db.GetProfileByUserID(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "profile not found", "")
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleUpdatePreferences(c *gin.Context) {
	var prefs json.RawMessage
	if !bindJSON(c, &prefs) {
		return
	}

	if err := s.db.UpdatePreferences(c.Request.Context(), currentUserID(c), prefs); err != nil {
		s.respondStorageError(c, err, "profile not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "preferences updated"})
}

type verificationRequest struct {
	LicenseNumber  string `json:"license_number" binding:"required"`
	LicenseCountry string `json:"license_country" binding:"required"`
	Specialty      string `json:"specialty"`
	DocumentURL    string `json:"document_url"`
}

func (s *Server) handleSubmitVerification(c *gin.Context) {
	var req verificationRequest
	if !bindJSON(c, &req) {
		return
	}

	v, err := s.db.CreateVerification(c.Request.Context(), currentUserID(c),
		req.LicenseNumber, req.LicenseCountry, req.Specialty, req.DocumentURL)
	if err != nil {
		s.respondStorageError(c, err, "", "verification already submitted")
		return
	}

	c.JSON(http.StatusCreated, v)
}

func (s *Server) handleGetVerification(c *gin.Context) {
	v, err := s.db.GetVerificationByUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "no verification submitted", "")
		return
	}

	c.JSON(http.StatusOK, v)
}
