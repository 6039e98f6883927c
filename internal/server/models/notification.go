package models

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	NotificationProjectInvite NotificationType = "project_invite"
	NotificationTaskAssigned  NotificationType = "task_assigned"
	NotificationMention       NotificationType = "mention"
	NotificationSystem        NotificationType = "system"
)

type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"isRead"`
	Metadata  json.RawMessage  `json:"metadata,omitempty"`
	Token     *string          `json:"token,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// InviteMetadata is stored in Notification.Metadata for project invites.
type InviteMetadata struct {
	InviterID   int64  `json:"inviterId"`
	InviterName string `json:"inviterName"`
	ProjectID   int64  `json:"projectId"`
	ProjectName string `json:"projectName"`
}
