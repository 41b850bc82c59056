package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/trialbridge/trialbridge/internal/auth"
	"github.com/trialbridge/trialbridge/internal/moderation"
	"github.com/trialbridge/trialbridge/internal/notify"
	"github.com/trialbridge/trialbridge/internal/platform/config"
	db "github.com/trialbridge/trialbridge/internal/storage"
)

type authClaims = auth.Claims

// Server carries the REST API's dependencies.
type Server struct {
	db      *db.DB
	cfg     *config.Config
	tokens  *auth.TokenIssuer
	mail    notify.Sender
	reports *moderation.Aggregator
	logger  *zerolog.Logger
}

func NewServer(database *db.DB, cfg *config.Config, mail notify.Sender, reports *moderation.Aggregator, logger *zerolog.Logger) *Server {
	return &Server{
		db:      database,
		cfg:     cfg,
		tokens:  auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTLifetime()),
		mail:    mail,
		reports: reports,
		logger:  logger,
	}
}

// Router builds the gin engine with all routes mounted under /api/v1.
func (s *Server) Router() *gin.Engine {
	if s.cfg.AppEnv != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.rateLimiter())

	v1 := r.Group("/api/v1")

	// Auth
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", s.handleRegister)
		authGroup.POST("/login", s.handleLogin)
		authGroup.POST("/forgot-password", s.handleForgotPassword)
		authGroup.POST("/reset-password", s.handleResetPassword)
		authGroup.POST("/change-password", s.authRequired(), s.handleChangePassword)
		authGroup.POST("/logout", s.authRequired(), s.handleLogout)
		authGroup.GET("/me", s.authRequired(), s.handleGetMe)
	}

	// Users
	users := v1.Group("/users", s.authRequired())
	{
		users.GET("/me", s.handleGetMe)
		users.PATCH("/me", s.handleUpdateProfile)
		users.PUT("/me/preferences", s.handleUpdatePreferences)
		users.POST("/me/verification", s.handleSubmitVerification)
		users.GET("/me/verification", s.handleGetVerification)
	}

	// Trials
	trials := v1.Group("/trials")
	{
		trials.GET("", s.authOptional(), s.handleSearchTrials)
		trials.GET("/:id", s.authOptional(), s.handleGetTrial)
		trials.POST("", s.authRequired(), adminRequired(), s.handleUpsertTrial)
		trials.POST("/:id/sites", s.authRequired(), adminRequired(), s.handleAddTrialSite)
		trials.POST("/:id/save", s.authRequired(), s.handleSaveTrial)
		trials.DELETE("/:id/save", s.authRequired(), s.handleUnsaveTrial)
		trials.POST("/:id/interest", s.authRequired(), s.handleTrialInterest)
	}

	v1.GET("/saved-trials", s.authRequired(), s.handleListSavedTrials)

	// Alerts
	alerts := v1.Group("/alerts", s.authRequired())
	{
		alerts.GET("", s.handleListAlerts)
		alerts.POST("", s.handleCreateAlert)
		alerts.PATCH("/:id", s.handleToggleAlert)
		alerts.DELETE("/:id", s.handleDeleteAlert)
	}

	// Communities and forum
	communities := v1.Group("/communities")
	{
		communities.GET("", s.authOptional(), s.handleListCommunities)
		communities.POST("", s.authRequired(), s.handleCreateCommunity)
		communities.GET("/:id", s.authOptional(), s.handleGetCommunity)
		communities.POST("/:id/join", s.authRequired(), s.handleJoinCommunity)
		communities.POST("/:id/leave", s.authRequired(), s.handleLeaveCommunity)
		communities.GET("/:id/posts", s.authOptional(), s.handleListPosts)
		communities.POST("/:id/posts", s.authRequired(), s.handleCreatePost)
	}

	v1.GET("/feed", s.authOptional(), s.handleFeed)

	posts := v1.Group("/posts")
	{
		posts.GET("/:id", s.authOptional(), s.handleGetPost)
		posts.PATCH("/:id", s.authRequired(), s.handleUpdatePost)
		posts.DELETE("/:id", s.authRequired(), s.handleDeletePost)
		posts.POST("/:id/like", s.authRequired(), s.handleLikePost)
		posts.DELETE("/:id/like", s.authRequired(), s.handleUnlikePost)
		posts.GET("/:id/comments", s.authOptional(), s.handleListComments)
		posts.POST("/:id/comments", s.authRequired(), s.handleCreateComment)
	}

	comments := v1.Group("/comments", s.authRequired())
	{
		comments.PATCH("/:id", s.handleUpdateComment)
		comments.DELETE("/:id", s.handleDeleteComment)
		comments.POST("/:id/like", s.handleLikeComment)
	}

	// Reports
	v1.POST("/reports", s.authRequired(), s.handleCreateReport)

	// Organizations
	orgs := v1.Group("/organizations")
	{
		orgs.GET("", s.handleListOrganizations)
		orgs.POST("", s.authRequired(), s.handleCreateOrganization)
		orgs.GET("/:id", s.handleGetOrganization)
		orgs.POST("/:id/members", s.authRequired(), s.handleAddOrgMember)
		orgs.DELETE("/:id/members/:userID", s.authRequired(), s.handleRemoveOrgMember)
		orgs.GET("/:id/working-groups", s.handleListWorkingGroups)
		orgs.POST("/:id/working-groups", s.authRequired(), s.handleCreateWorkingGroup)
	}

	groups := v1.Group("/working-groups", s.authRequired())
	{
		groups.POST("/:id/join", s.handleJoinWorkingGroup)
		groups.POST("/:id/leave", s.handleLeaveWorkingGroup)
	}

	// Events
	events := v1.Group("/events")
	{
		events.GET("", s.handleListEvents)
		events.POST("", s.authRequired(), s.handleCreateEvent)
		events.GET("/:id", s.authOptional(), s.handleGetEvent)
		events.POST("/:id/register", s.authRequired(), s.handleRegisterForEvent)
		events.DELETE("/:id/register", s.authRequired(), s.handleUnregisterFromEvent)
	}

	// Resources
	resources := v1.Group("/resources")
	{
		resources.GET("", s.handleListResources)
		resources.POST("", s.authRequired(), adminRequired(), s.handleCreateResource)
		resources.GET("/:id", s.authOptional(), s.handleGetResource)
		resources.POST("/:id/rating", s.authRequired(), s.handleRateResource)
		resources.POST("/:id/download", s.authOptional(), s.handleDownloadResource)
	}

	// Surveys
	surveys := v1.Group("/surveys")
	{
		surveys.GET("", s.handleListSurveys)
		surveys.POST("", s.authRequired(), adminRequired(), s.handleCreateSurvey)
		surveys.GET("/:id", s.handleGetSurvey)
		surveys.POST("/:id/responses", s.authRequired(), s.handleSubmitSurveyResponse)
	}

	// Notifications
	notifications := v1.Group("/notifications", s.authRequired())
	{
		notifications.GET("", s.handleListNotifications)
		notifications.POST("/:id/read", s.handleMarkNotificationRead)
		notifications.POST("/read-all", s.handleMarkAllNotificationsRead)
	}

	// Admin moderation
	admin := v1.Group("/admin", s.authRequired(), adminRequired())
	{
		admin.GET("/reports", s.handleListReports)
		admin.POST("/reports/:id/resolve", s.handleResolveReport)
		admin.POST("/moderation", s.handleSetModerationStatus)
		admin.GET("/verifications", s.handleListPendingVerifications)
		admin.POST("/verifications/:id/review", s.handleReviewVerification)
	}

	return r
}

// logActivity records an audit entry for the current user. Logging failures
// never fail the request.
func (s *Server) logActivity(c *gin.Context, action, targetType, targetID string) {
	if err := s.db.LogActivity(c.Request.Context(), currentUserID(c), action, targetType, targetID, nil); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("log activity")
	}
}

// Start serves the API until the context is canceled, then drains with a
// short grace period.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.APIPort),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("api server shutdown")
		}
	}()

	s.logger.Info().Int("port", s.cfg.APIPort).Msg("api server listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}

	return nil
}
