package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/trialbridge/trialbridge/internal/notify"
	db "github.com/trialbridge/trialbridge/internal/storage"
)

func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}

	return v
}

func queryList(c *gin.Context, name string) []string {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := parts[:0]

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

func (s *Server) handleSearchTrials(c *gin.Context) {
	params := db.TrialSearchParams{
		Keyword:      c.Query("q"),
		DiseaseAreas: queryList(c, "disease_area"),
		Phases:       queryList(c, "phase"),
		Statuses:     queryList(c, "status"),
		Country:      c.Query("country"),
		Page:         queryInt(c, "page", 1),
		Limit:        queryInt(c, "limit", 0),
		UserID:       currentUserID(c),
	}

	page, err := s.db.SearchTrials(c.Request.Context(), params)
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) handleGetTrial(c *gin.Context) {
	trial, err := s.db.GetTrialByID(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "trial not found", "")
		return
	}

	c.JSON(http.StatusOK, trial)
}

func (s *Server) handleUpsertTrial(c *gin.Context) {
	var in db.TrialInput
	if !bindJSON(c, &in) {
		return
	}

	if in.NCTID == "" || in.Title == "" {
		badRequest(c, "nct_id and title are required")
		return
	}

	trial, err := s.db.UpsertTrial(c.Request.Context(), in)
	if err != nil {
		s.respondStorageError(c, err, "", "trial already exists")
		return
	}

	c.JSON(http.StatusCreated, trial)
}

func (s *Server) handleAddTrialSite(c *gin.Context) {
	var site db.TrialSite
	if !bindJSON(c, &site) {
		return
	}

	if site.SiteName == "" {
		badRequest(c, "site_name is required")
		return
	}

	created, err := s.db.AddTrialSite(c.Request.Context(), c.Param("id"), site)
	if err != nil {
		s.respondStorageError(c, err, "trial not found", "")
		return
	}

	c.JSON(http.StatusCreated, created)
}

type saveTrialRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleSaveTrial(c *gin.Context) {
	var req saveTrialRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	if err := s.db.SaveTrial(c.Request.Context(), currentUserID(c), c.Param("id"), req.Notes); err != nil {
		s.respondStorageError(c, err, "trial not found", "")
		return
	}

	s.logActivity(c, "trial_saved", "trial", c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (s *Server) handleUnsaveTrial(c *gin.Context) {
	if err := s.db.UnsaveTrial(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		s.respondStorageError(c, err, "trial is not saved", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (s *Server) handleListSavedTrials(c *gin.Context) {
	saved, err := s.db.ListSavedTrials(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": saved})
}

type trialInterestRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleTrialInterest(c *gin.Context) {
	var req trialInterestRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	if err := s.db.RegisterTrialInterest(c.Request.Context(), currentUserID(c), c.Param("id"), req.Message); err != nil {
		s.respondStorageError(c, err, "trial not found", "")
		return
	}

	s.notifyTrialSites(c, c.Param("id"), req.Message)
	s.logActivity(c, "trial_interest", "trial", c.Param("id"))
	c.JSON(http.StatusCreated, gin.H{"status": "interest recorded"})
}

// notifyTrialSites emails the recruiting site contacts about a new interest
// registration. Delivery failures never fail the request.
func (s *Server) notifyTrialSites(c *gin.Context, trialID, message string) {
	trial, err := s.db.GetTrialByID(c.Request.Context(), trialID, "")
	if err != nil {
		s.logger.Warn().Err(err).Str("trial_id", trialID).Msg("load trial for interest notification")
		return
	}

	body := "A registered user expressed interest in trial " + trial.NCTID + " (" + trial.Title + ")."
	if message != "" {
		body += "\n\nMessage from the user:\n" + message
	}

	for _, site := range trial.Sites {
		if site.ContactEmail == "" {
			continue
		}

		msg := notify.Message{
			To:      site.ContactEmail,
			Subject: "New participant interest: " + trial.NCTID,
			Body:    body,
		}

		if err := s.mail.Send(c.Request.Context(), msg); err != nil {
			s.logger.Warn().Err(err).Str("trial_id", trialID).Msg("notify trial site")
		}
	}
}

type createAlertRequest struct {
	Name           string `json:"name"`
	TrialID        string `json:"trial_id" binding:"omitempty,uuid"`
	DiseaseArea    string `json:"disease_area"`
	Phase          string `json:"phase"`
	Location       string `json:"location"`
	Keyword        string `json:"keyword"`
	AlertFrequency string `json:"alert_frequency" binding:"required,oneof=instant daily weekly"`
}

func (s *Server) handleCreateAlert(c *gin.Context) {
	var req createAlertRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.TrialID == "" && req.DiseaseArea == "" && req.Phase == "" && req.Location == "" && req.Keyword == "" {
		badRequest(c, "at least one criterion is required")
		return
	}

	alert, err := s.db.CreateAlert(c.Request.Context(), currentUserID(c), db.Alert{
		Name:           req.Name,
		TrialID:        req.TrialID,
		DiseaseArea:    req.DiseaseArea,
		Phase:          req.Phase,
		Location:       req.Location,
		Keyword:        req.Keyword,
		AlertFrequency: req.AlertFrequency,
	})
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusCreated, alert)
}

func (s *Server) handleListAlerts(c *gin.Context) {
	alerts, err := s.db.ListAlertsByUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": alerts})
}

type toggleAlertRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func (s *Server) handleToggleAlert(c *gin.Context) {
	var req toggleAlertRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := s.db.SetAlertActive(c.Request.Context(), c.Param("id"), currentUserID(c), *req.IsActive); err != nil {
		s.respondStorageError(c, err, "alert not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s *Server) handleDeleteAlert(c *gin.Context) {
	if err := s.db.DeleteAlert(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		s.respondStorageError(c, err, "alert not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
