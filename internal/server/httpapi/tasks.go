package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/services"
	"github.com/gin-gonic/gin"
)

// Task bodies travel as JSON, or as the "task" field of a multipart form
// whose "attachment" files are stored with the task.
const (
	taskField       = "task"
	attachmentField = "attachment"
)

type statusRequest struct {
	Status models.TaskStatus `json:"status"`
}

func (s *Server) myTasks(c *gin.Context) {
	tasks, err := s.services.Tasks.ListMine(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", tasks)
}

func (s *Server) listVersionTasks(c *gin.Context) {
	versionID, err := idParam(c, "versionId")
	if err != nil {
		s.fail(c, err)
		return
	}
	tasks, err := s.services.Tasks.ListByVersion(c.Request.Context(), userID(c), versionID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", tasks)
}

func (s *Server) createTask(c *gin.Context) {
	var in services.TaskInput
	if err := bindBody(c, taskField, &in); err != nil {
		s.fail(c, err)
		return
	}
	files, closeFiles, err := formFiles(c, attachmentField)
	defer closeFiles()
	if err != nil {
		s.fail(c, err)
		return
	}

	task, err := s.services.Tasks.Create(c.Request.Context(), userID(c), in, files)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "task created", task)
}

func (s *Server) getTask(c *gin.Context) {
	taskID, err := idParam(c, "taskId")
	if err != nil {
		s.fail(c, err)
		return
	}
	task, err := s.services.Tasks.Get(c.Request.Context(), userID(c), taskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", task)
}

func (s *Server) updateTask(c *gin.Context) {
	taskID, err := idParam(c, "taskId")
	if err != nil {
		s.fail(c, err)
		return
	}
	var in services.TaskUpdate
	if err := bindBody(c, taskField, &in); err != nil {
		s.fail(c, err)
		return
	}
	files, closeFiles, err := formFiles(c, attachmentField)
	defer closeFiles()
	if err != nil {
		s.fail(c, err)
		return
	}

	task, err := s.services.Tasks.Update(c.Request.Context(), userID(c), taskID, in, files)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "task updated", task)
}

func (s *Server) updateTaskStatus(c *gin.Context) {
	taskID, err := idParam(c, "taskId")
	if err != nil {
		s.fail(c, err)
		return
	}
	var in statusRequest
	if err := bindBody(c, taskField, &in); err != nil {
		s.fail(c, err)
		return
	}
	task, err := s.services.Tasks.UpdateStatus(c.Request.Context(), userID(c), taskID, in.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "status updated", task)
}

func (s *Server) deleteTask(c *gin.Context) {
	taskID, err := idParam(c, "taskId")
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.services.Tasks.Delete(c.Request.Context(), userID(c), taskID); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "task deleted", nil)
}

func (s *Server) taskHistory(c *gin.Context) {
	taskID, err := idParam(c, "taskId")
	if err != nil {
		s.fail(c, err)
		return
	}
	history, err := s.services.Tasks.History(c.Request.Context(), userID(c), taskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", history)
}

func (s *Server) listAttachments(c *gin.Context) {
	taskID, err := idParam(c, "taskId")
	if err != nil {
		s.fail(c, err)
		return
	}
	attachments, err := s.services.Tasks.Attachments(c.Request.Context(), userID(c), taskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", attachments)
}

// downloadAttachment redirects to the stored file, either the local
// /uploads path or a presigned object URL.
func (s *Server) downloadAttachment(c *gin.Context) {
	attachmentID, err := idParam(c, "attachmentId")
	if err != nil {
		s.fail(c, err)
		return
	}
	_, url, err := s.services.Tasks.AttachmentURL(c.Request.Context(), userID(c), attachmentID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (s *Server) removeAttachment(c *gin.Context) {
	attachmentID, err := idParam(c, "attachmentId")
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.services.Tasks.RemoveAttachment(c.Request.Context(), userID(c), attachmentID); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "attachment removed", nil)
}
