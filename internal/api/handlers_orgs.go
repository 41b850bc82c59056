package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	db "github.com/trialbridge/trialbridge/internal/storage"
)

func (s *Server) handleListOrganizations(c *gin.Context) {
	orgs, err := s.db.ListOrganizations(c.Request.Context(), c.Query("type"))
	if err != nil {
		s.respondStorageError(c, err, "", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": orgs})
}

type createOrgRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	OrgType      string `json:"org_type" binding:"required,oneof=nonprofit pharma hospital academic"`
	Website      string `json:"website"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email"`
	LogoURL      string `json:"logo_url"`
}

func (s *Server) handleCreateOrganization(c *gin.Context) {
	var req createOrgRequest
	if !bindJSON(c, &req) {
		return
	}

	org, err := s.db.CreateOrganization(c.Request.Context(), currentUserID(c), db.Organization{
		Name:         req.Name,
		Description:  req.Description,
		OrgType:      req.OrgType,
		Website:      req.Website,
		ContactEmail: req.ContactEmail,
		LogoURL:      req.LogoURL,
	})
	if err != nil {
		s.respondStorageError(c, err, "", "an organization with that name already exists")
		return
	}

	c.JSON(http.StatusCreated, org)
}

func (s *Server) handleGetOrganization(c *gin.Context) {
	org, err := s.db.GetOrganizationByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondStorageError(c, err, "organization not found", "")
		return
	}

	c.JSON(http.StatusOK, org)
}

// requireOrgAdmin verifies the caller administers the organization. Platform
// admins pass unconditionally.
func (s *Server) requireOrgAdmin(c *gin.Context, orgID string) bool {
	if isAdmin(c) {
		return true
	}

	role, err := s.db.OrganizationRole(c.Request.Context(), orgID, currentUserID(c))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(c, http.StatusForbidden, "forbidden", "organization admin access required")
			return false
		}

		s.respondStorageError(c, err, "", "")

		return false
	}

	if role != "admin" {
		respondError(c, http.StatusForbidden, "forbidden", "organization admin access required")
		return false
	}

	return true
}

type addOrgMemberRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Role   string `json:"role" binding:"omitempty,oneof=member admin"`
}

func (s *Server) handleAddOrgMember(c *gin.Context) {
	orgID := c.Param("id")
	if !s.requireOrgAdmin(c, orgID) {
		return
	}

	var req addOrgMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := s.db.AddOrganizationMember(c.Request.Context(), orgID, req.UserID, req.Role); err != nil {
		s.respondStorageError(c, err, "organization or user not found", "")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "member added"})
}

func (s *Server) handleRemoveOrgMember(c *gin.Context) {
	orgID := c.Param("id")
	if !s.requireOrgAdmin(c, orgID) {
		return
	}

	if err := s.db.RemoveOrganizationMember(c.Request.Context(), orgID, c.Param("userID")); err != nil {
		s.respondStorageError(c, err, "member not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "member removed"})
}

func (s *Server) handleListWorkingGroups(c *gin.Context) {
	groups, err := s.db.ListWorkingGroups(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondStorageError(c, err, "organization not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": groups})
}

type createWorkingGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) handleCreateWorkingGroup(c *gin.Context) {
	orgID := c.Param("id")
	if !s.requireOrgAdmin(c, orgID) {
		return
	}

	var req createWorkingGroupRequest
	if !bindJSON(c, &req) {
		return
	}

	group, err := s.db.CreateWorkingGroup(c.Request.Context(), orgID, req.Name, req.Description)
	if err != nil {
		s.respondStorageError(c, err, "organization not found", "a working group with that name already exists")
		return
	}

	c.JSON(http.StatusCreated, group)
}

func (s *Server) handleJoinWorkingGroup(c *gin.Context) {
	if err := s.db.JoinWorkingGroup(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		s.respondStorageError(c, err, "working group not found", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "joined"})
}

func (s *Server) handleLeaveWorkingGroup(c *gin.Context) {
	if err := s.db.LeaveWorkingGroup(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		s.respondStorageError(c, err, "not a member of this working group", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "left"})
}
