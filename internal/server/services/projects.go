package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/dbx"
	"github.com/dmitrijs2005/taskforge/internal/logging"
	"github.com/dmitrijs2005/taskforge/internal/server/email"
	"github.com/dmitrijs2005/taskforge/internal/server/events"
	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskforge/internal/server/roles"
	"github.com/dmitrijs2005/taskforge/internal/server/storage"
	"github.com/google/uuid"
)

const mailTimeout = 30 * time.Second

type ProjectInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      models.ProjectStatus `json:"status"`
	Deadline    *time.Time           `json:"deadline"`
}

// ProjectUpdate carries optional changes. A zero Deadline clears it.
type ProjectUpdate struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Status      *models.ProjectStatus `json:"status"`
	Deadline    *time.Time            `json:"deadline"`
}

type MemberInput struct {
	UserID int64      `json:"userId"`
	Role   roles.Role `json:"role"`
}

// ProjectService covers projects, their members and invitations.
type ProjectService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	access      *AccessService
	users       *UserService
	store       storage.FileStore
	events      events.Publisher
	mailer      email.Sender
	logger      logging.Logger
	baseURL     string

	mail sync.WaitGroup
}

func NewProjectService(d Deps, access *AccessService, users *UserService) *ProjectService {
	mailer := d.Mailer
	if mailer == nil {
		mailer = email.Nop{}
	}
	return &ProjectService{
		db:          d.DB,
		repomanager: d.RepoManager,
		access:      access,
		users:       users,
		store:       d.Store,
		events:      d.events(),
		mailer:      mailer,
		logger:      d.logger("projects"),
		baseURL:     strings.TrimRight(d.Config.PublicBaseURL, "/"),
	}
}

// Create stores the project and makes the creator its accepted Admin.
func (s *ProjectService) Create(ctx context.Context, userID int64, in ProjectInput, banner *Upload) (*models.Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("project name is required")
	}
	if in.Status == 0 {
		in.Status = models.ProjectActive
	}
	if !in.Status.Valid() {
		return nil, invalid("unknown project status %d", in.Status)
	}

	var bannerURL string
	if banner != nil {
		url, err := saveUpload(ctx, s.store, banner)
		if err != nil {
			return nil, fmt.Errorf("error storing banner: %w", err)
		}
		bannerURL = url
	}

	project, err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.Project, error) {
		p, err := s.repomanager.Projects(tx).Create(ctx, &models.Project{
			CreatorID:   userID,
			Name:        in.Name,
			Description: in.Description,
			Status:      in.Status,
			Banner:      bannerURL,
			Deadline:    in.Deadline,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating project: %w", err)
		}

		now := time.Now()
		if _, err := s.repomanager.Participations(tx).Create(ctx, &models.Participation{
			UserID:     userID,
			ProjectID:  p.ID,
			Role:       roles.Top,
			AcceptedAt: &now,
		}); err != nil {
			return nil, fmt.Errorf("error adding creator: %w", err)
		}
		return p, nil
	})
	if err != nil {
		removeFiles(ctx, s.store, s.logger, bannerURL)
		return nil, err
	}

	s.logger.Info(ctx, "project created", "project_id", project.ID, "user_id", userID)
	return project, nil
}

func (s *ProjectService) List(ctx context.Context, userID int64) ([]models.Project, error) {
	return s.repomanager.Projects(s.db).ListForUser(ctx, userID)
}

func (s *ProjectService) Get(ctx context.Context, userID, projectID int64) (*models.Project, error) {
	if _, err := s.access.Require(ctx, userID, projectID, roles.Viewer); err != nil {
		return nil, err
	}
	return s.load(ctx, projectID)
}

func (s *ProjectService) load(ctx context.Context, projectID int64) (*models.Project, error) {
	repo := s.repomanager.Projects(s.db)
	p, err := repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Progress, err = repo.Progress(ctx, projectID); err != nil {
		return nil, err
	}
	return p, nil
}

// Update applies the changes, optionally replacing the banner, and tells
// the project room.
func (s *ProjectService) Update(ctx context.Context, userID, projectID int64, in ProjectUpdate, banner *Upload) (*models.Project, error) {
	if _, err := s.access.Require(ctx, userID, projectID, roles.Admin); err != nil {
		return nil, err
	}

	repo := s.repomanager.Projects(s.db)
	p, err := repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
		if p.Name == "" {
			return nil, invalid("project name is required")
		}
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, invalid("unknown project status %d", *in.Status)
		}
		p.Status = *in.Status
	}
	if in.Deadline != nil {
		if in.Deadline.IsZero() {
			p.Deadline = nil
		} else {
			p.Deadline = in.Deadline
		}
	}

	oldBanner := p.Banner
	newBanner := ""
	if banner != nil {
		if newBanner, err = saveUpload(ctx, s.store, banner); err != nil {
			return nil, fmt.Errorf("error storing banner: %w", err)
		}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Projects(tx)
		if err := repo.Update(ctx, p); err != nil {
			return fmt.Errorf("error updating project: %w", err)
		}
		if newBanner != "" {
			if err := repo.UpdateBanner(ctx, p.ID, newBanner); err != nil {
				return fmt.Errorf("error updating banner: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		removeFiles(ctx, s.store, s.logger, newBanner)
		return nil, err
	}
	if newBanner != "" {
		removeFiles(ctx, s.store, s.logger, oldBanner)
	}

	updated, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, events.ProjectRoom(projectID), events.ProjectUpdated, updated)
	return updated, nil
}

// Delete removes the project with everything below it, then the stored
// banner and attachment files.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID int64) error {
	if _, err := s.access.Require(ctx, userID, projectID, roles.Admin); err != nil {
		return err
	}

	p, err := s.repomanager.Projects(s.db).GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	files, err := s.attachmentURLs(ctx, projectID)
	if err != nil {
		return err
	}

	if err := s.repomanager.Projects(s.db).Delete(ctx, projectID); err != nil {
		return fmt.Errorf("error deleting project: %w", err)
	}
	removeFiles(ctx, s.store, s.logger, append(files, p.Banner)...)
	s.logger.Info(ctx, "project deleted", "project_id", projectID, "user_id", userID)
	return nil
}

func (s *ProjectService) attachmentURLs(ctx context.Context, projectID int64) ([]string, error) {
	versions, err := s.repomanager.Versions(s.db).ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, v := range versions {
		tasks, err := s.repomanager.Tasks(s.db).ListByVersion(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			atts, err := s.repomanager.Attachments(s.db).ListByTask(ctx, t.ID)
			if err != nil {
				return nil, err
			}
			for _, a := range atts {
				urls = append(urls, a.URL)
			}
		}
	}
	return urls, nil
}

func (s *ProjectService) Members(ctx context.Context, userID, projectID int64) ([]models.Participation, error) {
	if _, err := s.access.Require(ctx, userID, projectID, roles.Viewer); err != nil {
		return nil, err
	}
	return s.repomanager.Participations(s.db).ListByProject(ctx, projectID)
}

// MyRole returns roles.None when the caller has no active role.
func (s *ProjectService) MyRole(ctx context.Context, userID, projectID int64) (roles.Role, error) {
	return s.access.Role(ctx, userID, projectID)
}

// AddMember invites a user. The row stays pending until the invitee accepts;
// the invitee gets a durable notification, a live push and an e-mail.
func (s *ProjectService) AddMember(ctx context.Context, inviterID, projectID int64, in MemberInput) (*models.Participation, error) {
	callerRole, err := s.access.Require(ctx, inviterID, projectID, roles.Manager)
	if err != nil {
		return nil, err
	}
	if in.UserID <= 0 || !in.Role.Valid() {
		return nil, invalid("user and role are required")
	}
	if !roles.Outranks(callerRole, in.Role) {
		return nil, common.ErrorPermissionDenied
	}

	project, err := s.repomanager.Projects(s.db).GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.CreatorID == in.UserID {
		return nil, common.ErrorConflict
	}
	invitee, err := s.users.Me(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repomanager.Participations(s.db).Find(ctx, in.UserID, projectID); err == nil {
		return nil, common.ErrorConflict
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	inviterName := s.users.displayName(ctx, inviterID)
	token := uuid.NewString()
	metadata, err := json.Marshal(models.InviteMetadata{
		InviterID:   inviterID,
		InviterName: inviterName,
		ProjectID:   project.ID,
		ProjectName: project.Name,
	})
	if err != nil {
		return nil, err
	}

	var note *models.Notification
	part, err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.Participation, error) {
		part, err := s.repomanager.Participations(tx).Create(ctx, &models.Participation{
			UserID:          in.UserID,
			ProjectID:       projectID,
			Role:            in.Role,
			InvitationToken: &token,
		})
		if err != nil {
			return nil, fmt.Errorf("error adding member: %w", err)
		}

		note, err = s.repomanager.Notifications(tx).Create(ctx, &models.Notification{
			UserID:   in.UserID,
			Type:     models.NotificationProjectInvite,
			Title:    "Project invitation",
			Message:  fmt.Sprintf("%s invited you to join %s", inviterName, project.Name),
			Metadata: metadata,
			Token:    &token,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating notification: %w", err)
		}
		return part, nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.UserRoom(in.UserID), events.NewNotification, note)
	s.sendInvite(ctx, invitee.Email, email.InviteData{
		InviterName: inviterName,
		ProjectName: project.Name,
		AcceptURL:   fmt.Sprintf("%s/invitations/%s", s.baseURL, token),
	})

	s.logger.Info(ctx, "member invited", "project_id", projectID, "user_id", in.UserID, "role", in.Role.String())
	return part, nil
}

// sendInvite mails in the background; a failure is only logged.
func (s *ProjectService) sendInvite(ctx context.Context, to string, data email.InviteData) {
	ctx = context.WithoutCancel(ctx)
	s.mail.Add(1)
	go func() {
		defer s.mail.Done()
		ctx, cancel := context.WithTimeout(ctx, mailTimeout)
		defer cancel()
		subject := fmt.Sprintf("Invitation to %s", data.ProjectName)
		if err := s.mailer.Send(ctx, to, subject, email.TemplateProjectInvite, data); err != nil {
			s.logger.Warn(ctx, "invitation e-mail failed", "project", data.ProjectName, "error", err)
		}
	}()
}

// Wait blocks until queued invitation e-mails are done.
func (s *ProjectService) Wait() {
	s.mail.Wait()
}

// UpdateMember changes a member's role. The caller must outrank both the
// member's current role and the new one.
func (s *ProjectService) UpdateMember(ctx context.Context, callerID, projectID, memberID int64, role roles.Role) (*models.Participation, error) {
	part, err := s.manageable(ctx, callerID, projectID, memberID, role)
	if err != nil {
		return nil, err
	}
	if err := s.repomanager.Participations(s.db).UpdateRole(ctx, part.ID, role); err != nil {
		return nil, fmt.Errorf("error updating member: %w", err)
	}
	part.Role = role
	return part, nil
}

func (s *ProjectService) RemoveMember(ctx context.Context, callerID, projectID, memberID int64) error {
	part, err := s.manageable(ctx, callerID, projectID, memberID, roles.None)
	if err != nil {
		return err
	}
	if err := s.repomanager.Participations(s.db).Delete(ctx, part.ID); err != nil {
		return fmt.Errorf("error removing member: %w", err)
	}
	return nil
}

func (s *ProjectService) manageable(ctx context.Context, callerID, projectID, memberID int64, newRole roles.Role) (*models.Participation, error) {
	callerRole, err := s.access.Require(ctx, callerID, projectID, roles.Manager)
	if err != nil {
		return nil, err
	}
	if newRole != roles.None && !newRole.Valid() {
		return nil, invalid("unknown role %d", newRole)
	}

	project, err := s.repomanager.Projects(s.db).GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.CreatorID == memberID {
		return nil, common.ErrorPermissionDenied
	}

	part, err := s.repomanager.Participations(s.db).Find(ctx, memberID, projectID)
	if err != nil {
		return nil, err
	}
	if !roles.Outranks(callerRole, part.Role) {
		return nil, common.ErrorPermissionDenied
	}
	if newRole != roles.None && !roles.Outranks(callerRole, newRole) {
		return nil, common.ErrorPermissionDenied
	}
	return part, nil
}

// AcceptInvitation activates the invitee's membership.
func (s *ProjectService) AcceptInvitation(ctx context.Context, userID int64, token string) (*models.Participation, error) {
	part, err := s.invitation(ctx, userID, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Participations(tx).Accept(ctx, part.ID, now); err != nil {
			return fmt.Errorf("error accepting invitation: %w", err)
		}
		return s.repomanager.Notifications(tx).MarkReadByToken(ctx, userID, token)
	})
	if err != nil {
		return nil, err
	}

	part.AcceptedAt = &now
	part.InvitationToken = nil
	s.logger.Info(ctx, "invitation accepted", "project_id", part.ProjectID, "user_id", userID)
	return part, nil
}

func (s *ProjectService) DeclineInvitation(ctx context.Context, userID int64, token string) error {
	part, err := s.invitation(ctx, userID, token)
	if err != nil {
		return err
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Participations(tx).Delete(ctx, part.ID); err != nil {
			return fmt.Errorf("error declining invitation: %w", err)
		}
		return s.repomanager.Notifications(tx).MarkReadByToken(ctx, userID, token)
	})
}

func (s *ProjectService) invitation(ctx context.Context, userID int64, token string) (*models.Participation, error) {
	if strings.TrimSpace(token) == "" {
		return nil, invalid("invitation token is required")
	}
	part, err := s.repomanager.Participations(s.db).FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if part.UserID != userID {
		return nil, common.ErrorPermissionDenied
	}
	return part, nil
}
