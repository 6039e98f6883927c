package models

import "time"

type VersionStatus int

const (
	VersionDraft VersionStatus = iota + 1
	VersionTesting
	VersionStaging
	VersionReleased
	VersionDeprecated
	VersionRolledBack
)

func (s VersionStatus) Valid() bool {
	return s >= VersionDraft && s <= VersionRolledBack
}

type Version struct {
	ID          int64         `json:"id"`
	ProjectID   int64         `json:"projectId"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      VersionStatus `json:"status"`
	StartDate   *time.Time    `json:"startDate,omitempty"`
	EndDate     *time.Time    `json:"endDate,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
