package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) listNotifications(c *gin.Context) {
	notes, err := s.services.Notifications.List(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", notes)
}

func (s *Server) markNotificationRead(c *gin.Context) {
	id, err := idParam(c, "notificationId")
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.services.Notifications.MarkRead(c.Request.Context(), userID(c), id); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "notification read", nil)
}

func (s *Server) markAllNotificationsRead(c *gin.Context) {
	if err := s.services.Notifications.MarkAllRead(c.Request.Context(), userID(c)); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "notifications read", nil)
}
