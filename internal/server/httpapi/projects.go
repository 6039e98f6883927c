package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/taskforge/internal/server/roles"
	"github.com/dmitrijs2005/taskforge/internal/server/services"
	"github.com/gin-gonic/gin"
)

type roleRequest struct {
	Role roles.Role `json:"role"`
}

type roleResponse struct {
	Role roles.Role `json:"role"`
	Name string     `json:"name"`
}

func (s *Server) listProjects(c *gin.Context) {
	projects, err := s.services.Projects.List(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", projects)
}

func (s *Server) createProject(c *gin.Context) {
	var in services.ProjectInput
	if err := bindBody(c, "project", &in); err != nil {
		s.fail(c, err)
		return
	}
	banner, closeFiles, err := formFile(c, "banner")
	defer closeFiles()
	if err != nil {
		s.fail(c, err)
		return
	}

	project, err := s.services.Projects.Create(c.Request.Context(), userID(c), in, banner)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "project created", project)
}

func (s *Server) getProject(c *gin.Context) {
	projectID, err := idParam(c, "projectId")
	if err != nil {
		s.fail(c, err)
		return
	}
	project, err := s.services.Projects.Get(c.Request.Context(), userID(c), projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", project)
}

func (s *Server) updateProject(c *gin.Context) {
	projectID, err := idParam(c, "projectId")
	if err != nil {
		s.fail(c, err)
		return
	}
	var in services.ProjectUpdate
	if err := bindBody(c, "project", &in); err != nil {
		s.fail(c, err)
		return
	}
	banner, closeFiles, err := formFile(c, "banner")
	defer closeFiles()
	if err != nil {
		s.fail(c, err)
		return
	}

	project, err := s.services.Projects.Update(c.Request.Context(), userID(c), projectID, in, banner)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "project updated", project)
}

func (s *Server) deleteProject(c *gin.Context) {
	projectID, err := idParam(c, "projectId")
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.services.Projects.Delete(c.Request.Context(), userID(c), projectID); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "project deleted", nil)
}

func (s *Server) myRole(c *gin.Context) {
	projectID, err := idParam(c, "projectId")
	if err != nil {
		s.fail(c, err)
		return
	}
	role, err := s.services.Projects.MyRole(c.Request.Context(), userID(c), projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", roleResponse{Role: role, Name: role.String()})
}

func (s *Server) listMembers(c *gin.Context) {
	projectID, err := idParam(c, "projectId")
	if err != nil {
		s.fail(c, err)
		return
	}
	members, err := s.services.Projects.Members(c.Request.Context(), userID(c), projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", members)
}

func (s *Server) addMember(c *gin.Context) {
	projectID, err := idParam(c, "projectId")
	if err != nil {
		s.fail(c, err)
		return
	}
	var in services.MemberInput
	if err := bindBody(c, "member", &in); err != nil {
		s.fail(c, err)
		return
	}

	member, err := s.services.Projects.AddMember(c.Request.Context(), userID(c), projectID, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "invitation sent", member)
}

func (s *Server) updateMember(c *gin.Context) {
	projectID, err := idParam(c, "projectId")
	if err != nil {
		s.fail(c, err)
		return
	}
	memberID, err := idParam(c, "userId")
	if err != nil {
		s.fail(c, err)
		return
	}
	var in roleRequest
	if err := bindBody(c, "member", &in); err != nil {
		s.fail(c, err)
		return
	}

	member, err := s.services.Projects.UpdateMember(c.Request.Context(), userID(c), projectID, memberID, in.Role)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "member updated", member)
}

func (s *Server) removeMember(c *gin.Context) {
	projectID, err := idParam(c, "projectId")
	if err != nil {
		s.fail(c, err)
		return
	}
	memberID, err := idParam(c, "userId")
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.services.Projects.RemoveMember(c.Request.Context(), userID(c), projectID, memberID); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "member removed", nil)
}

func (s *Server) acceptInvitation(c *gin.Context) {
	member, err := s.services.Projects.AcceptInvitation(c.Request.Context(), userID(c), c.Param("token"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "invitation accepted", member)
}

func (s *Server) declineInvitation(c *gin.Context) {
	if err := s.services.Projects.DeclineInvitation(c.Request.Context(), userID(c), c.Param("token")); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "invitation declined", nil)
}
