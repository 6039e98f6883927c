package httpapi

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const (
	userIDKey       = "userID"
	tokenQueryParam = "token"
)

// authenticate resolves the bearer access token into the caller's user id.
func (s *Server) authenticate(c *gin.Context) {
	s.authorize(c, bearerToken(c))
}

// authenticateSocket also accepts the token as a query parameter, since
// browsers cannot set headers on a websocket handshake. Only /ws uses it.
func (s *Server) authenticateSocket(c *gin.Context) {
	accessToken := bearerToken(c)
	if accessToken == "" {
		accessToken = c.Query(tokenQueryParam)
	}
	s.authorize(c, accessToken)
}

func bearerToken(c *gin.Context) string {
	return strings.TrimSpace(strings.TrimPrefix(c.GetHeader(common.AccessTokenHeaderName), common.BearerPrefix))
}

func (s *Server) authorize(c *gin.Context, accessToken string) {
	if accessToken == "" {
		s.abort(c, common.ErrorUnauthorized)
		return
	}

	userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		s.abort(c, err)
		return
	}

	c.Set(userIDKey, userID)
	c.Next()
}

func (s *Server) abort(c *gin.Context, err error) {
	s.fail(c, err)
	c.Abort()
}

// userID is only valid behind authenticate.
func userID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		}
		if id, ok := c.Get(userIDKey); ok {
			args = append(args, "user_id", id)
		}
		s.logger.Info(c.Request.Context(), "request", args...)
	}
}
