package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/dbx"
	"github.com/dmitrijs2005/taskforge/internal/logging"
	"github.com/dmitrijs2005/taskforge/internal/server/events"
	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/tasktags"
	"github.com/dmitrijs2005/taskforge/internal/server/roles"
	"github.com/dmitrijs2005/taskforge/internal/server/storage"
)

const defaultContentType = "application/octet-stream"

// History field names.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldAssignee    = "assignee"
	FieldPriority    = "priority"
	FieldStatus      = "status"
	FieldDeadline    = "deadline"
	FieldVersion     = "version"
	FieldBlockReason = "blockReason"
)

type TaskInput struct {
	VersionID    int64             `json:"versionId"`
	AssigneeID   *int64            `json:"assigneeId"`
	ParentTaskID *int64            `json:"parentTaskId"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Priority     models.Priority   `json:"priority"`
	Status       models.TaskStatus `json:"status"`
	Deadline     *time.Time        `json:"deadline"`
	BlockReason  string            `json:"blockReason"`
	TagIDs       []int64           `json:"tagIds"`
}

// TaskUpdate carries optional changes; nil leaves a field alone.
// AssigneeID 0 unassigns and a zero Deadline clears it. TagIDs is the
// complete desired tag set. KeepAttachmentIDs lists the attachments that
// stay; the rest are removed.
type TaskUpdate struct {
	VersionID         *int64             `json:"versionId"`
	AssigneeID        *int64             `json:"assigneeId"`
	Title             *string            `json:"title"`
	Description       *string            `json:"description"`
	Priority          *models.Priority   `json:"priority"`
	Status            *models.TaskStatus `json:"status"`
	Deadline          *time.Time         `json:"deadline"`
	BlockReason       *string            `json:"blockReason"`
	TagIDs            *[]int64           `json:"tagIds"`
	KeepAttachmentIDs *[]int64           `json:"keepAttachmentIds"`
}

// Change is one field that differs between two task states.
type Change struct {
	Field string
	Old   *string
	New   *string
}

// TaskService runs the task workflows. Mutations check the caller's role
// through the task's version, write everything in one transaction and
// publish events only after commit.
type TaskService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	access      *AccessService
	store       storage.FileStore
	events      events.Publisher
	logger      logging.Logger
}

func NewTaskService(d Deps, access *AccessService) *TaskService {
	return &TaskService{
		db:          d.DB,
		repomanager: d.RepoManager,
		access:      access,
		store:       d.Store,
		events:      d.events(),
		logger:      d.logger("tasks"),
	}
}

func (s *TaskService) Create(ctx context.Context, userID int64, in TaskInput, files []*Upload) (*models.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, invalid("task title is required")
	}
	if in.VersionID <= 0 {
		return nil, invalid("version is required")
	}
	if in.Priority == 0 {
		in.Priority = models.PriorityMedium
	}
	if in.Status == 0 {
		in.Status = models.TaskPending
	}
	if !in.Priority.Valid() || !in.Status.Valid() {
		return nil, invalid("unknown priority or status")
	}

	version, _, err := s.access.RequireForVersion(ctx, userID, in.VersionID, roles.Developer)
	if err != nil {
		return nil, err
	}
	if in.AssigneeID != nil && *in.AssigneeID == 0 {
		in.AssigneeID = nil
	}
	if err := s.checkAssignee(ctx, version.ProjectID, in.AssigneeID); err != nil {
		return nil, err
	}
	if in.ParentTaskID != nil {
		parent, err := s.repomanager.Tasks(s.db).GetByID(ctx, *in.ParentTaskID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		if err != nil || parent.ProjectID != version.ProjectID {
			return nil, invalid("parent task is not part of the project")
		}
	}
	tagIDs := uniqueIDs(in.TagIDs)
	if err := s.checkTags(ctx, version.ProjectID, tagIDs); err != nil {
		return nil, err
	}

	stored, err := s.storeUploads(ctx, files)
	if err != nil {
		return nil, err
	}

	taskID, err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (int64, error) {
		t, err := s.repomanager.Tasks(tx).Create(ctx, &models.Task{
			VersionID:    in.VersionID,
			AssigneeID:   in.AssigneeID,
			ParentTaskID: in.ParentTaskID,
			Title:        in.Title,
			Description:  in.Description,
			Priority:     in.Priority,
			Status:       in.Status,
			Deadline:     in.Deadline,
			BlockReason:  in.BlockReason,
		})
		if err != nil {
			return 0, fmt.Errorf("error creating task: %w", err)
		}
		for _, tagID := range tagIDs {
			if err := s.repomanager.TaskTags(tx).Add(ctx, t.ID, tagID); err != nil {
				return 0, fmt.Errorf("error tagging task: %w", err)
			}
		}
		if err := s.addAttachments(ctx, tx, t.ID, stored); err != nil {
			return 0, err
		}
		return t.ID, nil
	})
	if err != nil {
		removeFiles(ctx, s.store, s.logger, urlsOf(stored)...)
		return nil, err
	}

	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.ProjectRoom(task.ProjectID), events.TaskCreated, task)
	if task.AssigneeID != nil {
		s.events.Publish(ctx, events.UserRoom(*task.AssigneeID), events.AssignedTaskCreated, task)
	}
	s.logger.Info(ctx, "task created", "task_id", task.ID, "user_id", userID)
	return task, nil
}

// Update applies scalar changes, history, tag and attachment reconciliation
// atomically. New files are stored up front and removed again if the
// transaction fails. Files of removed attachments are only deleted after
// commit; a failed deletion leaves an orphaned file that is logged.
func (s *TaskService) Update(ctx context.Context, userID, taskID int64, in TaskUpdate, files []*Upload) (*models.Task, error) {
	current, _, err := s.access.RequireForTask(ctx, userID, taskID, roles.Developer)
	if err != nil {
		return nil, err
	}

	next, err := s.apply(ctx, current, in)
	if err != nil {
		return nil, err
	}
	changes := DiffTask(current, next)

	var tagIDs []int64
	if in.TagIDs != nil {
		tagIDs = uniqueIDs(*in.TagIDs)
		if err := s.checkTags(ctx, current.ProjectID, tagIDs); err != nil {
			return nil, err
		}
	}

	stored, err := s.storeUploads(ctx, files)
	if err != nil {
		return nil, err
	}

	var removed []models.Attachment
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if len(changes) > 0 {
			if err := s.repomanager.Tasks(tx).Update(ctx, next); err != nil {
				return fmt.Errorf("error updating task: %w", err)
			}
			if err := s.recordHistory(ctx, tx, taskID, userID, changes); err != nil {
				return err
			}
		}
		if in.TagIDs != nil {
			if err := ReconcileTags(ctx, s.repomanager.TaskTags(tx), taskID, tagIDs); err != nil {
				return err
			}
		}

		if in.KeepAttachmentIDs != nil {
			dropped, err := s.dropAttachments(ctx, tx, taskID, *in.KeepAttachmentIDs)
			if err != nil {
				return err
			}
			removed = dropped
		}
		return s.addAttachments(ctx, tx, taskID, stored)
	})
	if err != nil {
		removeFiles(ctx, s.store, s.logger, urlsOf(stored)...)
		return nil, err
	}
	removeFiles(ctx, s.store, s.logger, urlsOf(removed)...)

	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.publishUpdated(ctx, current.AssigneeID, task)
	s.logger.Info(ctx, "task updated", "task_id", taskID, "user_id", userID, "changes", len(changes))
	return task, nil
}

// UpdateStatus is the quick status transition used by boards.
func (s *TaskService) UpdateStatus(ctx context.Context, userID, taskID int64, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, invalid("unknown status %d", status)
	}
	current, _, err := s.access.RequireForTask(ctx, userID, taskID, roles.Developer)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return s.load(ctx, taskID)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Tasks(tx).UpdateStatus(ctx, taskID, status); err != nil {
			return fmt.Errorf("error updating status: %w", err)
		}
		return s.recordHistory(ctx, tx, taskID, userID, []Change{statusChange(current.Status, status)})
	})
	if err != nil {
		return nil, err
	}

	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, events.ProjectRoom(task.ProjectID), events.TaskStatusUpdated, task)
	if task.AssigneeID != nil {
		s.events.Publish(ctx, events.UserRoom(*task.AssigneeID), events.AssignedTaskUpdated, task)
	}
	return task, nil
}

type deletedTask struct {
	ID        int64 `json:"id"`
	ProjectID int64 `json:"projectId"`
	VersionID int64 `json:"versionId"`
}

// Delete removes the task row (cascading to its children) and then its files.
func (s *TaskService) Delete(ctx context.Context, userID, taskID int64) error {
	task, _, err := s.access.RequireForTask(ctx, userID, taskID, roles.Developer)
	if err != nil {
		return err
	}
	atts, err := s.repomanager.Attachments(s.db).ListByTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.repomanager.Tasks(s.db).Delete(ctx, taskID); err != nil {
		return fmt.Errorf("error deleting task: %w", err)
	}
	removeFiles(ctx, s.store, s.logger, urlsOf(atts)...)

	payload := deletedTask{ID: task.ID, ProjectID: task.ProjectID, VersionID: task.VersionID}
	s.events.Publish(ctx, events.ProjectRoom(task.ProjectID), events.TaskDeleted, payload)
	if task.AssigneeID != nil {
		s.events.Publish(ctx, events.UserRoom(*task.AssigneeID), events.AssignedTaskRemoved, payload)
	}
	s.logger.Info(ctx, "task deleted", "task_id", taskID, "user_id", userID)
	return nil
}

// Get returns the task with tags, attachments and comments.
func (s *TaskService) Get(ctx context.Context, userID, taskID int64) (*models.Task, error) {
	if _, _, err := s.access.RequireForTask(ctx, userID, taskID, roles.Viewer); err != nil {
		return nil, err
	}
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Comments, err = s.repomanager.Comments(s.db).ListByTask(ctx, taskID); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) ListByVersion(ctx context.Context, userID, versionID int64) ([]models.Task, error) {
	if _, _, err := s.access.RequireForVersion(ctx, userID, versionID, roles.Viewer); err != nil {
		return nil, err
	}
	return s.repomanager.Tasks(s.db).ListByVersion(ctx, versionID)
}

// ListMine returns the tasks assigned to the caller across projects.
func (s *TaskService) ListMine(ctx context.Context, userID int64) ([]models.Task, error) {
	return s.repomanager.Tasks(s.db).ListByAssignee(ctx, userID)
}

func (s *TaskService) History(ctx context.Context, userID, taskID int64) ([]models.TaskHistory, error) {
	if _, _, err := s.access.RequireForTask(ctx, userID, taskID, roles.Viewer); err != nil {
		return nil, err
	}
	return s.repomanager.History(s.db).ListByTask(ctx, taskID)
}

func (s *TaskService) Attachments(ctx context.Context, userID, taskID int64) ([]models.Attachment, error) {
	if _, _, err := s.access.RequireForTask(ctx, userID, taskID, roles.Viewer); err != nil {
		return nil, err
	}
	return s.repomanager.Attachments(s.db).ListByTask(ctx, taskID)
}

// AttachmentURL returns the attachment and a URL the caller can fetch it from.
func (s *TaskService) AttachmentURL(ctx context.Context, userID, attachmentID int64) (*models.Attachment, string, error) {
	a, err := s.repomanager.Attachments(s.db).GetByID(ctx, attachmentID)
	if err != nil {
		return nil, "", err
	}
	if _, _, err := s.access.RequireForTask(ctx, userID, a.TaskID, roles.Viewer); err != nil {
		return nil, "", err
	}
	url, err := s.store.DownloadURL(ctx, a.URL)
	if err != nil {
		return nil, "", err
	}
	return a, url, nil
}

// RemoveAttachment deletes one attachment row and then its file. A failed
// file deletion is logged and does not restore the row.
func (s *TaskService) RemoveAttachment(ctx context.Context, userID, attachmentID int64) error {
	a, err := s.repomanager.Attachments(s.db).GetByID(ctx, attachmentID)
	if err != nil {
		return err
	}
	task, _, err := s.access.RequireForTask(ctx, userID, a.TaskID, roles.Developer)
	if err != nil {
		return err
	}

	if err := s.repomanager.Attachments(s.db).Delete(ctx, a.ID); err != nil {
		return err
	}
	removeFiles(ctx, s.store, s.logger, a.URL)

	if updated, err := s.load(ctx, task.ID); err == nil {
		s.publishUpdated(ctx, task.AssigneeID, updated)
	}
	return nil
}

// --- helpers below ---

// apply returns a copy of current with in applied and validated.
func (s *TaskService) apply(ctx context.Context, current *models.Task, in TaskUpdate) (*models.Task, error) {
	next := *current
	next.Tags, next.Attachments, next.Comments = nil, nil, nil

	if in.Title != nil {
		next.Title = strings.TrimSpace(*in.Title)
		if next.Title == "" {
			return nil, invalid("task title is required")
		}
	}
	if in.Description != nil {
		next.Description = *in.Description
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, invalid("unknown priority %d", *in.Priority)
		}
		next.Priority = *in.Priority
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, invalid("unknown status %d", *in.Status)
		}
		next.Status = *in.Status
	}
	if in.BlockReason != nil {
		next.BlockReason = *in.BlockReason
	}
	if in.Deadline != nil {
		if in.Deadline.IsZero() {
			next.Deadline = nil
		} else {
			d := *in.Deadline
			next.Deadline = &d
		}
	}
	if in.AssigneeID != nil {
		if *in.AssigneeID == 0 {
			next.AssigneeID = nil
		} else {
			id := *in.AssigneeID
			next.AssigneeID = &id
			if !sameID(current.AssigneeID, next.AssigneeID) {
				if err := s.checkAssignee(ctx, current.ProjectID, next.AssigneeID); err != nil {
					return nil, err
				}
			}
		}
	}
	if in.VersionID != nil && *in.VersionID != current.VersionID {
		v, err := s.repomanager.Versions(s.db).GetByID(ctx, *in.VersionID)
		if err != nil || v.ProjectID != current.ProjectID {
			return nil, invalid("version is not part of the project")
		}
		next.VersionID = v.ID
	}
	return &next, nil
}

// checkAssignee accepts nil or a user holding an active role in the project.
func (s *TaskService) checkAssignee(ctx context.Context, projectID int64, assigneeID *int64) error {
	if assigneeID == nil {
		return nil
	}
	role, err := s.access.Role(ctx, *assigneeID, projectID)
	if err != nil {
		return err
	}
	if role == roles.None {
		return invalid("assignee is not a member of the project")
	}
	return nil
}

func (s *TaskService) checkTags(ctx context.Context, projectID int64, tagIDs []int64) error {
	repo := s.repomanager.Tags(s.db)
	for _, id := range tagIDs {
		t, err := repo.GetByID(ctx, id)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if err != nil || t.ProjectID != projectID {
			return invalid("tag %d is not part of the project", id)
		}
	}
	return nil
}

func (s *TaskService) recordHistory(ctx context.Context, tx dbx.DBTX, taskID, userID int64, changes []Change) error {
	repo := s.repomanager.History(tx)
	for _, c := range changes {
		if err := repo.Create(ctx, &models.TaskHistory{
			TaskID:    taskID,
			ChangedBy: userID,
			Field:     c.Field,
			OldValue:  c.Old,
			NewValue:  c.New,
		}); err != nil {
			return fmt.Errorf("error recording history: %w", err)
		}
	}
	return nil
}

// ReconcileTags brings the task's tag set to desired. Removals run before
// additions; tags present on both sides are not touched.
func ReconcileTags(ctx context.Context, repo tasktags.Repository, taskID int64, desired []int64) error {
	current, err := repo.ListByTask(ctx, taskID)
	if err != nil {
		return err
	}

	want := make(map[int64]struct{}, len(desired))
	for _, id := range desired {
		want[id] = struct{}{}
	}
	have := make(map[int64]struct{}, len(current))
	for _, tt := range current {
		have[tt.TagID] = struct{}{}
	}

	for _, tt := range current {
		if _, ok := want[tt.TagID]; !ok {
			if err := repo.Remove(ctx, taskID, tt.TagID); err != nil {
				return fmt.Errorf("error removing tag %d: %w", tt.TagID, err)
			}
		}
	}
	for _, id := range uniqueIDs(desired) {
		if _, ok := have[id]; !ok {
			if err := repo.Add(ctx, taskID, id); err != nil {
				return fmt.Errorf("error adding tag %d: %w", id, err)
			}
		}
	}
	return nil
}

// dropAttachments deletes the rows not listed in keep and returns them so
// their files can be removed.
func (s *TaskService) dropAttachments(ctx context.Context, tx dbx.DBTX, taskID int64, keep []int64) ([]models.Attachment, error) {
	repo := s.repomanager.Attachments(tx)
	current, err := repo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	kept := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}

	var removed []models.Attachment
	for _, a := range current {
		if _, ok := kept[a.ID]; ok {
			continue
		}
		if err := repo.Delete(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("error deleting attachment %d: %w", a.ID, err)
		}
		removed = append(removed, a)
	}
	return removed, nil
}

func (s *TaskService) addAttachments(ctx context.Context, tx dbx.DBTX, taskID int64, stored []models.Attachment) error {
	repo := s.repomanager.Attachments(tx)
	for i := range stored {
		a := stored[i]
		a.TaskID = taskID
		if _, err := repo.Create(ctx, &a); err != nil {
			return fmt.Errorf("error saving attachment: %w", err)
		}
	}
	return nil
}

// storeUploads writes every file or none of them.
func (s *TaskService) storeUploads(ctx context.Context, files []*Upload) ([]models.Attachment, error) {
	now := time.Now()
	stored := make([]models.Attachment, 0, len(files))
	for _, f := range files {
		url, err := saveUpload(ctx, s.store, f)
		if err != nil {
			removeFiles(ctx, s.store, s.logger, urlsOf(stored)...)
			return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
		}
		contentType := f.ContentType
		if contentType == "" {
			contentType = defaultContentType
		}
		stored = append(stored, models.Attachment{
			FileName:   f.Name,
			URL:        url,
			Type:       contentType,
			Size:       f.Size,
			UploadedAt: now,
		})
	}
	return stored, nil
}

func (s *TaskService) load(ctx context.Context, taskID int64) (*models.Task, error) {
	task, err := s.repomanager.Tasks(s.db).GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Tags, err = s.repomanager.TaskTags(s.db).ListTags(ctx, taskID); err != nil {
		return nil, err
	}
	if task.Attachments, err = s.repomanager.Attachments(s.db).ListByTask(ctx, taskID); err != nil {
		return nil, err
	}
	return task, nil
}

// publishUpdated keeps personal task lists in sync: an unchanged assignee
// gets an update, a changed one moves the task between the two users.
func (s *TaskService) publishUpdated(ctx context.Context, before *int64, task *models.Task) {
	s.events.Publish(ctx, events.ProjectRoom(task.ProjectID), events.TaskUpdated, task)

	after := task.AssigneeID
	if sameID(before, after) {
		if after != nil {
			s.events.Publish(ctx, events.UserRoom(*after), events.AssignedTaskUpdated, task)
		}
		return
	}
	if before != nil {
		s.events.Publish(ctx, events.UserRoom(*before), events.AssignedTaskRemoved, deletedTask{
			ID: task.ID, ProjectID: task.ProjectID, VersionID: task.VersionID,
		})
	}
	if after != nil {
		s.events.Publish(ctx, events.UserRoom(*after), events.AssignedTaskCreated, task)
	}
}

// DiffTask lists the tracked fields that differ between old and next.
// Deadlines compare by instant and status values use their labels.
func DiffTask(old, next *models.Task) []Change {
	var changes []Change
	add := func(field string, a, b *string) {
		if !sameString(a, b) {
			changes = append(changes, Change{Field: field, Old: a, New: b})
		}
	}

	add(FieldTitle, str(old.Title), str(next.Title))
	add(FieldDescription, optString(old.Description), optString(next.Description))
	add(FieldAssignee, idString(old.AssigneeID), idString(next.AssigneeID))
	add(FieldPriority, str(strconv.Itoa(int(old.Priority))), str(strconv.Itoa(int(next.Priority))))
	if old.Status != next.Status {
		changes = append(changes, statusChange(old.Status, next.Status))
	}
	if !sameTime(old.Deadline, next.Deadline) {
		changes = append(changes, Change{Field: FieldDeadline, Old: timeString(old.Deadline), New: timeString(next.Deadline)})
	}
	add(FieldVersion, str(strconv.FormatInt(old.VersionID, 10)), str(strconv.FormatInt(next.VersionID, 10)))
	add(FieldBlockReason, optString(old.BlockReason), optString(next.BlockReason))
	return changes
}

func statusChange(from, to models.TaskStatus) Change {
	return Change{Field: FieldStatus, Old: str(from.Label()), New: str(to.Label())}
}

func str(s string) *string { return &s }

// optString maps the empty string to absent.
func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func idString(id *int64) *string {
	if id == nil {
		return nil
	}
	return str(strconv.FormatInt(*id, 10))
}

func timeString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return str(t.UTC().Format(time.RFC3339))
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func urlsOf(atts []models.Attachment) []string {
	urls := make([]string, 0, len(atts))
	for _, a := range atts {
		urls = append(urls, a.URL)
	}
	return urls
}
