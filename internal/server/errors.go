package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slok/missionctl/internal/model"
)

var statusByKind = map[model.ErrorKind]int{
	model.ErrorKindNotFound:          http.StatusNotFound,
	model.ErrorKindIllegalTransition: http.StatusConflict,
	model.ErrorKindValidation:        http.StatusBadRequest,
	model.ErrorKindAlreadyExists:     http.StatusConflict,
	model.ErrorKindStorage:           http.StatusInternalServerError,
}

type errorResponse struct {
	Error string          `json:"error"`
	Kind  model.ErrorKind `json:"kind"`
}

func (s *Server) writeError(c *gin.Context, err error) {
	kind := model.KindOf(err)
	status := statusByKind[kind]

	if status >= http.StatusInternalServerError {
		s.logger.WithCtxValues(c.Request.Context()).Errorf("%s %s failed: %s", c.Request.Method, c.Request.URL.Path, err)
	}

	c.JSON(status, errorResponse{Error: err.Error(), Kind: kind})
}

func (s *Server) bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.writeError(c, fmt.Errorf("invalid request body: %s: %w", err, model.ErrNotValid))
		return false
	}
	return true
}

// queryLimit returns the limit query parameter, 0 when missing.
func (s *Server) queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		s.writeError(c, fmt.Errorf("invalid limit %q: %w", raw, model.ErrNotValid))
		return 0, false
	}

	return limit, true
}

// queryDay returns the named day query parameter, zero when missing.
func (s *Server) queryDay(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}

	day, err := time.Parse(model.UsageDateLayout, raw)
	if err != nil {
		s.writeError(c, fmt.Errorf("invalid %s day %q, expected YYYY-MM-DD: %w", name, raw, model.ErrNotValid))
		return time.Time{}, false
	}

	return day, true
}
