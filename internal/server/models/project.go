// Package models defines server-side data models persisted in the database
// and the enums that describe their lifecycle.
package models

import (
	"time"

	"github.com/dmitrijs2005/taskforge/internal/server/roles"
)

type ProjectStatus int

const (
	ProjectActive ProjectStatus = iota + 1
	ProjectPaused
	ProjectCompleted
	ProjectArchived
)

func (s ProjectStatus) Valid() bool {
	return s >= ProjectActive && s <= ProjectArchived
}

type Project struct {
	ID          int64         `json:"id"`
	CreatorID   int64         `json:"creatorId"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	Banner      string        `json:"banner,omitempty"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`

	// Progress is derived from the project's tasks, in [0,1].
	Progress float64 `json:"progress"`
}

// Participation is a membership row. A non-empty InvitationToken or a nil
// AcceptedAt marks a pending invite that grants no role.
type Participation struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"userId"`
	ProjectID       int64      `json:"projectId"`
	Role            roles.Role `json:"role"`
	InvitedAt       time.Time  `json:"invitedAt"`
	AcceptedAt      *time.Time `json:"acceptedAt,omitempty"`
	InvitationToken *string    `json:"-"`

	User *UserBasic `json:"user,omitempty"`
}

// Active reports whether the participation is an accepted membership.
func (p *Participation) Active() bool {
	return p.InvitationToken == nil && p.AcceptedAt != nil
}
