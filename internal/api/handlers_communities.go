package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	db "github.com/trialbridge/trialbridge/internal/storage"
)

func (s *Server) handleListCommunities(c *gin.Context) {
	page, err := s.db.ListCommunities(c.Request.Context(), db.CommunityListParams{
		Search:        c.Query("q"),
		CommunityType: c.Query("type"),
		Page:          queryInt(c, "page", 1),
		Limit:         queryInt(c, "limit", 0),
		UserID:        currentUserID(c),
	})
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, page)
}

type createCommunityRequest struct {
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	CommunityType   string `json:"community_type" binding:"required,oneof=condition location lifestyle research"`
	ModerationLevel string `json:"moderation_level" binding:"omitempty,oneof=open standard strict"`
}

func (s *Server) handleCreateCommunity(c *gin.Context) {
	var req createCommunityRequest
	if !bindJSON(c, &req) {
		return
	}

	community, err := s.db.CreateCommunity(c.Request.Context(), db.Community{
		Name:            req.Name,
		Description:     req.Description,
		CommunityType:   req.CommunityType,
		ModerationLevel: req.ModerationLevel,
	})
	if err != nil {
		s.respondStorageError(c, err, "", "a community with that name already exists")
		return
	}

	// The creator joins their own community.
	if err := s.db.JoinCommunity(c.Request.Context(), community.ID, currentUserID(c)); err != nil {
		s.logger.Warn().Err(err).Msg("auto join created community")
	} else {
		community.IsMember = true
		community.MemberCount++
	}

	c.JSON(http.StatusCreated, community)
}

func (s *Server) handleGetCommunity(c *gin.Context) {
	community, err := s.db.GetCommunityByID(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		s.respondStorageError(c, err, "community not found", "")
		return
	}

	c.JSON(http.StatusOK, community)
}

func (s *Server) handleJoinCommunity(c *gin.Context) {
	if err := s.db.JoinCommunity(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		s.respondStorageError(c, err, "community not found", "")
		return
	}

	s.logActivity(c, "community_joined", "community", c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "joined"})
}

func (s *Server) handleLeaveCommunity(c *gin.Context) {
	if err := s.db.LeaveCommunity(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		s.respondStorageError(c, err, "not a member of this community", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// handleFeed lists recent posts across all communities.
func (s *Server) handleFeed(c *gin.Context) {
	page, err := s.db.ListPosts(c.Request.Context(), db.PostListParams{
		Page:          queryInt(c, "page", 1),
		Limit:         queryInt(c, "limit", 0),
		IncludeHidden: isAdmin(c),
	})
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) handleListPosts(c *gin.Context) {
	page, err := s.db.ListPosts(c.Request.Context(), db.PostListParams{
		CommunityID:   c.Param("id"),
		Page:          queryInt(c, "page", 1),
		Limit:         queryInt(c, "limit", 0),
		IncludeHidden: isAdmin(c),
	})
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, page)
}

type createPostRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (s *Server) handleCreatePost(c *gin.Context) {
	var req createPostRequest
	if !bindJSON(c, &req) {
		return
	}

	communityID := c.Param("id")
	userID := currentUserID(c)

	member, err := s.db.IsCommunityMember(c.Request.Context(), communityID, userID)
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	if !member {
		respondError(c, http.StatusForbidden, "forbidden", "join the community before posting")
		return
	}

	post, err := s.db.CreatePost(c.Request.Context(), communityID, userID, req.Title, req.Content)
	if err != nil {
		s.respondStorageError(c, err, "community not found", "")
		return
	}

	s.logActivity(c, "post_created", "post", post.ID)
	c.JSON(http.StatusCreated, post)
}

func (s *Server) handleGetPost(c *gin.Context) {
	post, err := s.db.GetPostByID(c.Request.Context(), c.Param("id"), isAdmin(c))
	if err != nil {
		s.respondStorageError(c, err, "post not found", "")
		return
	}

	if err := s.db.IncrementPostViews(c.Request.Context(), post.ID); err != nil {
		s.logger.Warn().Err(err).Msg("increment post views")
	}

	c.JSON(http.StatusOK, post)
}

type updatePostRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (s *Server) handleUpdatePost(c *gin.Context) {
	var req updatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	err := s.db.UpdatePost(c.Request.Context(), c.Param("id"), currentUserID(c), isAdmin(c), req.Title, req.Content)
	if err != nil {
		s.respondStorageError(c, err, "post not found or not yours to edit", "")
		return
	}

	post, err := s.db.GetPostByID(c.Request.Context(), c.Param("id"), isAdmin(c))
	if err != nil {
		s.respondStorageError(c, err, "post not found", "")
		return
	}

	c.JSON(http.StatusOK, post)
}

func (s *Server) handleDeletePost(c *gin.Context) {
	err := s.db.SoftDeletePost(c.Request.Context(), c.Param("id"), currentUserID(c), isAdmin(c))
	if err != nil {
		s.respondStorageError(c, err, "post not found or not yours to delete", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleLikePost(c *gin.Context) {
	if err := s.db.LikePost(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		s.respondStorageError(c, err, "post not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "liked"})
}

func (s *Server) handleUnlikePost(c *gin.Context) {
	if err := s.db.UnlikePost(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		s.respondStorageError(c, err, "post not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "unliked"})
}

func (s *Server) handleListComments(c *gin.Context) {
	comments, err := s.db.ListCommentsByPost(c.Request.Context(), c.Param("id"), isAdmin(c))
	if err != nil {
		s.respondStorageError(c, err, "post not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": comments})
}

type createCommentRequest struct {
	Content         string  `json:"content" binding:"required"`
	ParentCommentID *string `json:"parent_comment_id"`
}

func (s *Server) handleCreateComment(c *gin.Context) {
	var req createCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := s.db.CreateComment(c.Request.Context(), c.Param("id"), currentUserID(c), req.Content, req.ParentCommentID)
	if err != nil {
		s.respondStorageError(c, err, "post not found", "")
		return
	}

	c.JSON(http.StatusCreated, comment)
}

type updateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (s *Server) handleUpdateComment(c *gin.Context) {
	var req updateCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	err := s.db.UpdateComment(c.Request.Context(), c.Param("id"), currentUserID(c), isAdmin(c), req.Content)
	if err != nil {
		s.respondStorageError(c, err, "comment not found or not yours to edit", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s *Server) handleDeleteComment(c *gin.Context) {
	err := s.db.SoftDeleteComment(c.Request.Context(), c.Param("id"), currentUserID(c), isAdmin(c))
	if err != nil {
		s.respondStorageError(c, err, "comment not found or not yours to delete", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleLikeComment(c *gin.Context) {
	if err := s.db.LikeComment(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		s.respondStorageError(c, err, "comment not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "liked"})
}
