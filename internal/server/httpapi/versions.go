package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/taskforge/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (s *Server) listVersions(c *gin.Context) {
	projectID, err := idParam(c, "projectId")
	if err != nil {
		s.fail(c, err)
		return
	}
	versions, err := s.services.Versions.List(c.Request.Context(), userID(c), projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", versions)
}

func (s *Server) createVersion(c *gin.Context) {
	projectID, err := idParam(c, "projectId")
	if err != nil {
		s.fail(c, err)
		return
	}
	var in services.VersionInput
	if err := bindBody(c, "version", &in); err != nil {
		s.fail(c, err)
		return
	}
	version, err := s.services.Versions.Create(c.Request.Context(), userID(c), projectID, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "version created", version)
}

func (s *Server) getVersion(c *gin.Context) {
	versionID, err := idParam(c, "versionId")
	if err != nil {
		s.fail(c, err)
		return
	}
	version, err := s.services.Versions.Get(c.Request.Context(), userID(c), versionID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", version)
}

func (s *Server) updateVersion(c *gin.Context) {
	versionID, err := idParam(c, "versionId")
	if err != nil {
		s.fail(c, err)
		return
	}
	var in services.VersionInput
	if err := bindBody(c, "version", &in); err != nil {
		s.fail(c, err)
		return
	}
	version, err := s.services.Versions.Update(c.Request.Context(), userID(c), versionID, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "version updated", version)
}

func (s *Server) deleteVersion(c *gin.Context) {
	versionID, err := idParam(c, "versionId")
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.services.Versions.Delete(c.Request.Context(), userID(c), versionID); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "version deleted", nil)
}
