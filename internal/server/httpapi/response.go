package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/filex"
	"github.com/dmitrijs2005/taskforge/internal/server/services"
	"github.com/gin-gonic/gin"
)

// envelope is the body of every response.
type envelope struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Message: message, Success: true, Data: data})
}

// statusFor maps service errors onto a status code and a client message.
// Unknown errors become a 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, common.ErrTokenExpired.Error()
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized, common.ErrRefreshTokenExpired.Error()
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, common.ErrInvalidToken.Error()
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, common.ErrorUnauthorized.Error()
	case errors.Is(err, common.ErrorPermissionDenied):
		return http.StatusUnauthorized, common.ErrorPermissionDenied.Error()
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, common.ErrorNotFound.Error()
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict, common.ErrorConflict.Error()
	default:
		return http.StatusInternalServerError, common.ErrorInternal.Error()
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, envelope{Message: message, Success: false})
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrorValidation, fmt.Sprintf(format, args...))
}

// idParam reads a positive numeric path parameter.
func idParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("bad %s", name)
	}
	return id, nil
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

// bindBody decodes v from a JSON body, or from the JSON text of the named
// form field when the request is multipart.
func bindBody(c *gin.Context, field string, v any) error {
	if isMultipart(c) {
		raw := c.PostForm(field)
		if raw == "" {
			return invalid("form field %q is required", field)
		}
		if err := json.Unmarshal([]byte(raw), v); err != nil {
			return invalid("form field %q: %v", field, err)
		}
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil {
		return invalid("malformed body: %v", err)
	}
	return nil
}

// formFiles opens every file sent under field. The returned func closes
// them and must be called once the service is done.
func formFiles(c *gin.Context, field string) ([]*services.Upload, func(), error) {
	if !isMultipart(c) {
		return nil, func() {}, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, func() {}, invalid("malformed form: %v", err)
	}

	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	uploads := make([]*services.Upload, 0, len(form.File[field]))
	for _, h := range form.File[field] {
		f, err := h.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, invalid("cannot read %q: %v", h.Filename, err)
		}
		opened = append(opened, f)
		uploads = append(uploads, &services.Upload{
			Name:        filex.SafeName(h.Filename),
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}

// formFile is formFiles for a single optional file.
func formFile(c *gin.Context, field string) (*services.Upload, func(), error) {
	uploads, closeAll, err := formFiles(c, field)
	if err != nil || len(uploads) == 0 {
		return nil, closeAll, err
	}
	return uploads[0], closeAll, nil
}
