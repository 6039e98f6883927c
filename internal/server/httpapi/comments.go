package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	Content string `json:"content"`
}

func (s *Server) listComments(c *gin.Context) {
	taskID, err := idParam(c, "taskId")
	if err != nil {
		s.fail(c, err)
		return
	}
	comments, err := s.services.Comments.List(c.Request.Context(), userID(c), taskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", comments)
}

func (s *Server) addComment(c *gin.Context) {
	taskID, err := idParam(c, "taskId")
	if err != nil {
		s.fail(c, err)
		return
	}
	var in commentRequest
	if err := bindBody(c, "comment", &in); err != nil {
		s.fail(c, err)
		return
	}
	comment, err := s.services.Comments.Add(c.Request.Context(), userID(c), taskID, in.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "comment added", comment)
}

func (s *Server) editComment(c *gin.Context) {
	commentID, err := idParam(c, "commentId")
	if err != nil {
		s.fail(c, err)
		return
	}
	var in commentRequest
	if err := bindBody(c, "comment", &in); err != nil {
		s.fail(c, err)
		return
	}
	comment, err := s.services.Comments.Edit(c.Request.Context(), userID(c), commentID, in.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "comment updated", comment)
}

func (s *Server) deleteComment(c *gin.Context) {
	commentID, err := idParam(c, "commentId")
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.services.Comments.Delete(c.Request.Context(), userID(c), commentID); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "comment deleted", nil)
}
