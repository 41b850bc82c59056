package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trialbridge/trialbridge/internal/auth"
	"github.com/trialbridge/trialbridge/internal/notify"
	"github.com/trialbridge/trialbridge/internal/platform/observability"
	db "github.com/trialbridge/trialbridge/internal/storage"
)

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	UserType  string `json:"user_type"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      string `json:"user_id"`
	UserType    string `json:"user_type"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	// Self-registration only covers patients and unverified clinicians; the
	// hcp role is granted through verification review.
	userType := db.UserTypePatient
	if req.UserType == db.UserTypeOrgMember {
		userType = db.UserTypeOrgMember
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			badRequest(c, err.Error())
			return
		}

		s.respondStorageError(c, err, "", "")

		return
	}

	user, err := s.db.CreateUser(c.Request.Context(), req.Email, hash, userType, req.FirstName, req.LastName)
	if err != nil {
		s.respondStorageError(c, err, "user not found", "email is already registered")
		return
	}

	observability.RegistrationsTotal.WithLabelValues("success").Inc()

	token, err := s.tokens.Issue(user.ID, user.UserType, time.Now())
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusCreated, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokens.Lifetime().Seconds()),
		UserID:      user.ID,
		UserType:    user.UserType,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := s.db.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}

		s.respondStorageError(c, err, "", "")

		return
	}

	if !user.IsActive || user.Status != "active" {
		respondError(c, http.StatusForbidden, "account_disabled", "account is suspended or deactivated")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	if err := s.db.UpdateLastLogin(c.Request.Context(), user.ID); err != nil {
		s.logger.Warn().Err(err).Msg("update last login")
	}

	token, err := s.tokens.Issue(user.ID, user.UserType, time.Now())
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokens.Lifetime().Seconds()),
		UserID:      user.ID,
		UserType:    user.UserType,
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// handleForgotPassword always answers 202 so the endpoint cannot be used to
// probe which emails are registered.
func (s *Server) handleForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	accepted := func() {
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	}

	user, err := s.db.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.Error().Err(err).Msg("forgot password lookup")
		}

		accepted()

		return
	}

	token, err := auth.NewResetToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("generate reset token")
		accepted()

		return
	}

	expiresAt := time.Now().Add(s.cfg.ResetTokenLifetime)

	if err := s.db.CreateResetToken(c.Request.Context(), user.ID, token, expiresAt); err != nil {
		s.logger.Error().Err(err).Msg("store reset token")
		accepted()

		return
	}

	msg := notify.Message{
		To:      user.Email,
		Subject: "Reset your TrialBridge password",
		Body: fmt.Sprintf("A password reset was requested for your account.\n\n"+
			"Reset link: %s/reset-password?token=%s\n\n"+
			"The link expires in %s. If you did not request this, ignore this email.",
			s.cfg.FrontendURL, token, s.cfg.ResetTokenLifetime),
	}

	if err := s.mail.Send(c.Request.Context(), msg); err != nil {
		s.logger.Error().Err(err).Msg("send reset email")
	}

	accepted()
}

// resetTokenState classifies a fetched reset token. A consumed token gets its
// own code so clients can distinguish reuse from expiry.
func resetTokenState(token *db.ResetToken, now time.Time) (code, message string, ok bool) {
	switch {
	case token.Used:
		return "token_already_used", "reset token has already been used", false
	case now.After(token.ExpiresAt):
		return "invalid_token", "reset token is invalid or expired", false
	default:
		return "", "", true
	}
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (s *Server) handleResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	token, err := s.db.GetResetToken(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(c, http.StatusBadRequest, "invalid_token", "reset token is invalid or expired")
			return
		}

		s.respondStorageError(c, err, "", "")

		return
	}

	if code, message, ok := resetTokenState(token, time.Now()); !ok {
		respondError(c, http.StatusBadRequest, code, message)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	// Consume the token first; a concurrent redeem of the same token loses
	// here and never reaches the password update.
	if err := s.db.MarkResetTokenUsed(c.Request.Context(), token.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(c, http.StatusBadRequest, "token_already_used", "reset token has already been used")
			return
		}

		s.respondStorageError(c, err, "", "")

		return
	}

	if err := s.db.UpdatePasswordHash(c.Request.Context(), token.UserID, hash); err != nil {
		s.respondStorageError(c, err, "user not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

// handleLogout only records the event; bearer tokens stay valid until expiry
// and clients discard them locally.
func (s *Server) handleLogout(c *gin.Context) {
	s.logActivity(c, "logout", "user", currentUserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := s.db.GetUserByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "user not found", "")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		respondError(c, http.StatusUnauthorized, "invalid_credentials", "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := s.db.UpdatePasswordHash(c.Request.Context(), user.ID, hash); err != nil {
		s.respondStorageError(c, err, "user not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}
