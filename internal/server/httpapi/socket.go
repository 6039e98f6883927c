package httpapi

import (
	"github.com/gin-gonic/gin"
)

// socket upgrades an authenticated request and hands the connection to the
// event hub for the rest of its life.
func (s *Server) socket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}
	s.sockets.Serve(c.Request.Context(), conn, userID(c))
}
