package models

import (
	"time"

	"github.com/dmitrijs2005/taskforge/internal/server/roles"
)

type TaskStatus int

const (
	TaskPending TaskStatus = iota + 1
	TaskInProgress
	TaskBlocked
	TaskReview
	TaskDone
	TaskCanceled
)

var taskStatusLabels = map[TaskStatus]string{
	TaskPending:    "Pending",
	TaskInProgress: "In Progress",
	TaskBlocked:    "Blocked",
	TaskReview:     "Review",
	TaskDone:       "Done",
	TaskCanceled:   "Canceled",
}

func (s TaskStatus) Valid() bool {
	_, ok := taskStatusLabels[s]
	return ok
}

// Label is the human readable status used in history rows.
func (s TaskStatus) Label() string {
	if l, ok := taskStatusLabels[s]; ok {
		return l
	}
	return "Unknown"
}

type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

// Task belongs to exactly one version; ProjectID is resolved through it.
type Task struct {
	ID           int64      `json:"id"`
	VersionID    int64      `json:"versionId"`
	ProjectID    int64      `json:"projectId"`
	AssigneeID   *int64     `json:"assigneeId,omitempty"`
	ParentTaskID *int64     `json:"parentTaskId,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Priority     Priority   `json:"priority"`
	Status       TaskStatus `json:"status"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	BlockReason  string     `json:"blockReason,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	Tags        []Tag        `json:"tags,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Comments    []Comment    `json:"comments,omitempty"`
}

type TaskTag struct {
	ID     int64 `json:"id"`
	TaskID int64 `json:"taskId"`
	TagID  int64 `json:"tagId"`
}

type Tag struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"projectId"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
}

type Attachment struct {
	ID         int64     `json:"id"`
	TaskID     int64     `json:"taskId"`
	FileName   string    `json:"fileName"`
	URL        string    `json:"url"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type Comment struct {
	ID         int64       `json:"id"`
	TaskID     int64       `json:"taskId"`
	AuthorID   int64       `json:"authorId"`
	AuthorRole *roles.Role `json:"authorRole,omitempty"`
	Content    string      `json:"content"`
	Edited     bool        `json:"edited"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// TaskHistory is one append-only audit row. Nil values mean "absent".
type TaskHistory struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"taskId"`
	ChangedBy int64     `json:"changedBy"`
	Field     string    `json:"field"`
	OldValue  *string   `json:"oldValue"`
	NewValue  *string   `json:"newValue"`
	ChangedAt time.Time `json:"changedAt"`
}
