package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	db "github.com/trialbridge/trialbridge/internal/storage"
)

func (s *Server) handleListSurveys(c *gin.Context) {
	surveys, err := s.db.ListActiveSurveys(c.Request.Context())
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": surveys})
}

type createSurveyRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	OpensAt     *time.Time `json:"opens_at"`
	ClosesAt    *time.Time `json:"closes_at"`
	Questions   []struct {
		QuestionText string          `json:"question_text" binding:"required"`
		QuestionType string          `json:"question_type" binding:"required,oneof=text single_choice multi_choice scale"`
		Options      json.RawMessage `json:"options"`
		IsRequired   bool            `json:"is_required"`
	} `json:"questions" binding:"required,min=1"`
}

func (s *Server) handleCreateSurvey(c *gin.Context) {
	var req createSurveyRequest
	if !bindJSON(c, &req) {
		return
	}

	survey := db.Survey{
		Title:       req.Title,
		Description: req.Description,
		OpensAt:     req.OpensAt,
		ClosesAt:    req.ClosesAt,
	}

	for _, q := range req.Questions {
		survey.Questions = append(survey.Questions, db.SurveyQuestion{
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Options:      q.Options,
			IsRequired:   q.IsRequired,
		})
	}

	created, err := s.db.CreateSurvey(c.Request.Context(), currentUserID(c), survey)
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetSurvey(c *gin.Context) {
	survey, err := s.db.GetSurveyByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondStorageError(c, err, "survey not found", "")
		return
	}

	c.JSON(http.StatusOK, survey)
}

type surveyResponseRequest struct {
	Answers json.RawMessage `json:"answers" binding:"required"`
}

func (s *Server) handleSubmitSurveyResponse(c *gin.Context) {
	var req surveyResponseRequest
	if !bindJSON(c, &req) {
		return
	}

	survey, err := s.db.GetSurveyByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondStorageError(c, err, "survey not found", "")
		return
	}

	now := time.Now()
	open := survey.IsActive &&
		(survey.OpensAt == nil || !now.Before(*survey.OpensAt)) &&
		(survey.ClosesAt == nil || now.Before(*survey.ClosesAt))

	if !open {
		respondError(c, http.StatusConflict, "survey_closed", "survey is not accepting responses")
		return
	}

	err = s.db.SubmitSurveyResponse(c.Request.Context(), survey.ID, currentUserID(c), req.Answers)
	if err != nil {
		s.respondStorageError(c, err, "survey not found", "you already responded to this survey")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "submitted"})
}
