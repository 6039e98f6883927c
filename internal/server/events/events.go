// Package events fans real-time notifications out to connected clients.
// Delivery is fire-and-forget: nothing is retried or persisted.
package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Event names pushed to clients.
const (
	TaskCreated         = "taskCreated"
	TaskUpdated         = "taskUpdated"
	TaskDeleted         = "taskDeleted"
	TaskStatusUpdated   = "taskStatusUpdated"
	ProjectUpdated      = "projectUpdated"
	NewNotification     = "newNotification"
	AssignedTaskCreated = "assignedTaskCreated"
	AssignedTaskUpdated = "assignedTaskUpdated"
	AssignedTaskRemoved = "assignedTaskRemoved"
)

// Room kinds.
const (
	RoomProject = "project"
	RoomUser    = "user"
)

var ErrBadRoom = errors.New("bad room")

// Event is the frame written to the socket.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Publisher is what the mutation workflows depend on.
type Publisher interface {
	Publish(ctx context.Context, room, name string, data any)
}

func ProjectRoom(projectID int64) string {
	return fmt.Sprintf("%s:%d", RoomProject, projectID)
}

func UserRoom(userID int64) string {
	return fmt.Sprintf("%s:%d", RoomUser, userID)
}

// ParseRoom splits "project:<id>" or "user:<id>".
func ParseRoom(room string) (kind string, id int64, err error) {
	kind, rawID, ok := strings.Cut(room, ":")
	if !ok || (kind != RoomProject && kind != RoomUser) {
		return "", 0, fmt.Errorf("%w: %q", ErrBadRoom, room)
	}
	id, err = strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrBadRoom, room)
	}
	return kind, id, nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) {}
