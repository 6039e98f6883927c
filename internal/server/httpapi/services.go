package httpapi

import (
	"context"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/roles"
	"github.com/dmitrijs2005/taskforge/internal/server/services"
	"github.com/gorilla/websocket"
)

// The interfaces below list what the handlers need from the services
// package; *services.XService values satisfy them.

type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, login, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID int64) error
	Me(ctx context.Context, userID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, in services.ProfileInput) (*models.User, error)
	ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error
	UpdateImage(ctx context.Context, userID int64, upload *services.Upload) (*models.User, error)
	Delete(ctx context.Context, userID int64) error
	Search(ctx context.Context, prefix string) ([]models.UserBasic, error)
}

type ProjectService interface {
	Create(ctx context.Context, userID int64, in services.ProjectInput, banner *services.Upload) (*models.Project, error)
	List(ctx context.Context, userID int64) ([]models.Project, error)
	Get(ctx context.Context, userID, projectID int64) (*models.Project, error)
	Update(ctx context.Context, userID, projectID int64, in services.ProjectUpdate, banner *services.Upload) (*models.Project, error)
	Delete(ctx context.Context, userID, projectID int64) error
	Members(ctx context.Context, userID, projectID int64) ([]models.Participation, error)
	MyRole(ctx context.Context, userID, projectID int64) (roles.Role, error)
	AddMember(ctx context.Context, inviterID, projectID int64, in services.MemberInput) (*models.Participation, error)
	UpdateMember(ctx context.Context, callerID, projectID, memberID int64, role roles.Role) (*models.Participation, error)
	RemoveMember(ctx context.Context, callerID, projectID, memberID int64) error
	AcceptInvitation(ctx context.Context, userID int64, token string) (*models.Participation, error)
	DeclineInvitation(ctx context.Context, userID int64, token string) error
}

type VersionService interface {
	Create(ctx context.Context, userID, projectID int64, in services.VersionInput) (*models.Version, error)
	Get(ctx context.Context, userID, versionID int64) (*models.Version, error)
	List(ctx context.Context, userID, projectID int64) ([]models.Version, error)
	Update(ctx context.Context, userID, versionID int64, in services.VersionInput) (*models.Version, error)
	Delete(ctx context.Context, userID, versionID int64) error
}

type TagService interface {
	Create(ctx context.Context, userID, projectID int64, in services.TagInput) (*models.Tag, error)
	List(ctx context.Context, userID, projectID int64) ([]models.Tag, error)
	Update(ctx context.Context, userID, tagID int64, in services.TagInput) (*models.Tag, error)
	Delete(ctx context.Context, userID, tagID int64) error
}

type TaskService interface {
	Create(ctx context.Context, userID int64, in services.TaskInput, files []*services.Upload) (*models.Task, error)
	Update(ctx context.Context, userID, taskID int64, in services.TaskUpdate, files []*services.Upload) (*models.Task, error)
	UpdateStatus(ctx context.Context, userID, taskID int64, status models.TaskStatus) (*models.Task, error)
	Delete(ctx context.Context, userID, taskID int64) error
	Get(ctx context.Context, userID, taskID int64) (*models.Task, error)
	ListByVersion(ctx context.Context, userID, versionID int64) ([]models.Task, error)
	ListMine(ctx context.Context, userID int64) ([]models.Task, error)
	History(ctx context.Context, userID, taskID int64) ([]models.TaskHistory, error)
	Attachments(ctx context.Context, userID, taskID int64) ([]models.Attachment, error)
	AttachmentURL(ctx context.Context, userID, attachmentID int64) (*models.Attachment, string, error)
	RemoveAttachment(ctx context.Context, userID, attachmentID int64) error
}

type CommentService interface {
	Add(ctx context.Context, userID, taskID int64, content string) (*models.Comment, error)
	List(ctx context.Context, userID, taskID int64) ([]models.Comment, error)
	Edit(ctx context.Context, userID, commentID int64, content string) (*models.Comment, error)
	Delete(ctx context.Context, userID, commentID int64) error
}

type NotificationService interface {
	List(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64) error
	MarkAllRead(ctx context.Context, userID int64) error
}

// SocketServer runs one upgraded websocket connection until it ends.
type SocketServer interface {
	Serve(ctx context.Context, conn *websocket.Conn, userID int64)
}

// Services bundles the handlers' collaborators.
type Services struct {
	Users         UserService
	Projects      ProjectService
	Versions      VersionService
	Tags          TagService
	Tasks         TaskService
	Comments      CommentService
	Notifications NotificationService
}
