package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/taskforge/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (s *Server) listTags(c *gin.Context) {
	projectID, err := idParam(c, "projectId")
	if err != nil {
		s.fail(c, err)
		return
	}
	tags, err := s.services.Tags.List(c.Request.Context(), userID(c), projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", tags)
}

func (s *Server) createTag(c *gin.Context) {
	projectID, err := idParam(c, "projectId")
	if err != nil {
		s.fail(c, err)
		return
	}
	var in services.TagInput
	if err := bindBody(c, "tag", &in); err != nil {
		s.fail(c, err)
		return
	}
	tag, err := s.services.Tags.Create(c.Request.Context(), userID(c), projectID, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "tag created", tag)
}

func (s *Server) updateTag(c *gin.Context) {
	tagID, err := idParam(c, "tagId")
	if err != nil {
		s.fail(c, err)
		return
	}
	var in services.TagInput
	if err := bindBody(c, "tag", &in); err != nil {
		s.fail(c, err)
		return
	}
	tag, err := s.services.Tags.Update(c.Request.Context(), userID(c), tagID, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "tag updated", tag)
}

func (s *Server) deleteTag(c *gin.Context) {
	tagID, err := idParam(c, "tagId")
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.services.Tags.Delete(c.Request.Context(), userID(c), tagID); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "tag deleted", nil)
}
