package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/server/services"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type passwordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) register(c *gin.Context) {

	var in services.RegisterInput
	if err := bindBody(c, "user", &in); err != nil {
		s.fail(c, err)
		return
	}

	user, err := s.services.Users.Register(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "Registered", "user_id", user.ID)
	respond(c, http.StatusCreated, "user registered", user)
}

func (s *Server) login(c *gin.Context) {

	var in loginRequest
	if err := bindBody(c, "login", &in); err != nil {
		s.fail(c, err)
		return
	}

	tokens, err := s.services.Users.Login(c.Request.Context(), in.Login, in.Password)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.setRefreshCookie(c, tokens.RefreshToken)
	respond(c, http.StatusOK, "logged in", tokens)
}

func (s *Server) refresh(c *gin.Context) {

	token, err := c.Cookie(common.RefreshTokenCookieName)
	if err != nil || token == "" {
		s.fail(c, common.ErrorUnauthorized)
		return
	}

	tokens, err := s.services.Users.RefreshToken(c.Request.Context(), token)
	if err != nil {
		s.clearRefreshCookie(c)
		s.fail(c, err)
		return
	}

	s.setRefreshCookie(c, tokens.RefreshToken)
	respond(c, http.StatusOK, "token refreshed", tokens)
}

func (s *Server) logout(c *gin.Context) {
	if err := s.services.Users.Logout(c.Request.Context(), userID(c)); err != nil {
		s.fail(c, err)
		return
	}
	s.clearRefreshCookie(c)
	respond(c, http.StatusOK, "logged out", nil)
}

func (s *Server) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshTokenCookieName, token, int(s.refreshTTL.Seconds()), "/users", "", s.secure, true)
}

func (s *Server) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshTokenCookieName, "", -1, "/users", "", s.secure, true)
}

func (s *Server) me(c *gin.Context) {
	user, err := s.services.Users.Me(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", user)
}

func (s *Server) updateProfile(c *gin.Context) {
	var in services.ProfileInput
	if err := bindBody(c, "user", &in); err != nil {
		s.fail(c, err)
		return
	}
	user, err := s.services.Users.UpdateProfile(c.Request.Context(), userID(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "profile updated", user)
}

func (s *Server) changePassword(c *gin.Context) {
	var in passwordRequest
	if err := bindBody(c, "password", &in); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.services.Users.ChangePassword(c.Request.Context(), userID(c), in.OldPassword, in.NewPassword); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "password changed", nil)
}

func (s *Server) updateImage(c *gin.Context) {
	image, closeFiles, err := formFile(c, "image")
	defer closeFiles()
	if err != nil {
		s.fail(c, err)
		return
	}
	if image == nil {
		s.fail(c, invalid("image file is required"))
		return
	}

	user, err := s.services.Users.UpdateImage(c.Request.Context(), userID(c), image)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "image updated", user)
}

func (s *Server) removeImage(c *gin.Context) {
	user, err := s.services.Users.UpdateImage(c.Request.Context(), userID(c), nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "image removed", user)
}

func (s *Server) deleteAccount(c *gin.Context) {
	if err := s.services.Users.Delete(c.Request.Context(), userID(c)); err != nil {
		s.fail(c, err)
		return
	}
	s.clearRefreshCookie(c)
	respond(c, http.StatusOK, "account deleted", nil)
}

func (s *Server) searchUsers(c *gin.Context) {
	users, err := s.services.Users.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", users)
}
