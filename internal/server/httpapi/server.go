// Package httpapi exposes the services over HTTP/JSON and upgrades /ws to
// the real-time event channel.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskforge/internal/logging"
	"github.com/dmitrijs2005/taskforge/internal/server/storage"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	shutdownTimeout    = 10 * time.Second
	readHeaderTimeout  = 10 * time.Second
	maxMultipartMemory = 32 << 20
)

// Options configure a Server. UploadDir is served under /uploads/ when set.
type Options struct {
	Address         string
	SecretKey       string
	RefreshTokenTTL time.Duration
	SecureCookies   bool
	UploadDir       string
}

type Server struct {
	address    string
	services   Services
	sockets    SocketServer
	logger     logging.Logger
	jwtSecret  []byte
	refreshTTL time.Duration
	secure     bool
	uploadDir  string
	upgrader   websocket.Upgrader
	engine     *gin.Engine
}

func NewServer(o Options, l logging.Logger, svc Services, sockets SocketServer) *Server {
	s := &Server{
		address:    o.Address,
		services:   svc,
		sockets:    sockets,
		logger:     l.With("module", "http_server"),
		jwtSecret:  []byte(o.SecretKey),
		refreshTTL: o.RefreshTokenTTL,
		secure:     o.SecureCookies,
		uploadDir:  o.UploadDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router; used by tests and by Run.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory
	r.Use(gin.Recovery(), s.requestLogger())

	// Local uploads are capability URLs: public, with random file names.
	if s.uploadDir != "" {
		r.Static(strings.TrimSuffix(storage.LocalURLPrefix, "/"), s.uploadDir)
	}

	r.POST("/users/register", s.register)
	r.POST("/users/login", s.login)
	r.POST("/users/refresh", s.refresh)
	r.GET("/ws", s.authenticateSocket, s.socket)

	a := r.Group("/", s.authenticate)

	a.POST("/users/logout", s.logout)
	a.GET("/users/me", s.me)
	a.PUT("/users/me", s.updateProfile)
	a.DELETE("/users/me", s.deleteAccount)
	a.PUT("/users/me/password", s.changePassword)
	a.PUT("/users/me/image", s.updateImage)
	a.DELETE("/users/me/image", s.removeImage)
	a.GET("/users/search", s.searchUsers)

	a.GET("/projects", s.listProjects)
	a.POST("/projects", s.createProject)
	a.GET("/projects/:projectId", s.getProject)
	a.PUT("/projects/:projectId", s.updateProject)
	a.DELETE("/projects/:projectId", s.deleteProject)
	a.GET("/projects/:projectId/role", s.myRole)
	a.GET("/projects/:projectId/members", s.listMembers)
	a.POST("/projects/:projectId/members", s.addMember)
	a.PUT("/projects/:projectId/members/:userId", s.updateMember)
	a.DELETE("/projects/:projectId/members/:userId", s.removeMember)
	a.POST("/invitations/:token/accept", s.acceptInvitation)
	a.POST("/invitations/:token/decline", s.declineInvitation)

	a.GET("/projects/:projectId/versions", s.listVersions)
	a.POST("/projects/:projectId/versions", s.createVersion)
	a.GET("/versions/:versionId", s.getVersion)
	a.PUT("/versions/:versionId", s.updateVersion)
	a.DELETE("/versions/:versionId", s.deleteVersion)
	a.GET("/versions/:versionId/tasks", s.listVersionTasks)

	a.GET("/projects/:projectId/tags", s.listTags)
	a.POST("/projects/:projectId/tags", s.createTag)
	a.PUT("/tags/:tagId", s.updateTag)
	a.DELETE("/tags/:tagId", s.deleteTag)

	a.GET("/tasks", s.myTasks)
	a.POST("/tasks", s.createTask)
	a.GET("/tasks/:taskId", s.getTask)
	a.PUT("/tasks/:taskId", s.updateTask)
	a.DELETE("/tasks/:taskId", s.deleteTask)
	a.PUT("/tasks/:taskId/status", s.updateTaskStatus)
	a.GET("/tasks/:taskId/history", s.taskHistory)
	a.GET("/tasks/:taskId/attachments", s.listAttachments)
	a.GET("/tasks/:taskId/comments", s.listComments)
	a.POST("/tasks/:taskId/comments", s.addComment)
	a.GET("/attachments/:attachmentId", s.downloadAttachment)
	a.DELETE("/attachments/:attachmentId", s.removeAttachment)
	a.PUT("/comments/:commentId", s.editComment)
	a.DELETE("/comments/:commentId", s.deleteComment)

	a.GET("/notifications", s.listNotifications)
	a.PUT("/notifications/read-all", s.markAllNotificationsRead)
	a.PUT("/notifications/:notificationId/read", s.markNotificationRead)

	return r
}

// Run serves until ctx is cancelled and then shuts down gracefully.
// Websocket sessions inherit ctx and end with it.
func (s *Server) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
