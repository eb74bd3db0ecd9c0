package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slok/missionctl/internal/app/chat"
	"github.com/slok/missionctl/internal/app/reconcile"
	"github.com/slok/missionctl/internal/app/task"
	"github.com/slok/missionctl/internal/app/taskdetail"
	"github.com/slok/missionctl/internal/app/usage"
	"github.com/slok/missionctl/internal/model"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"clients":   s.hub.Count(),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleDashboard(c *gin.Context) {
	snap, err := s.dashboard.Snapshot(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// Activities.

func (s *Server) handleListActivities(c *gin.Context) {
	limit, ok := s.queryLimit(c)
	if !ok {
		return
	}

	acts, err := s.reconciler.ListActivities(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, acts)
}

func (s *Server) handleRecordActivity(c *gin.Context) {
	var req model.Activity
	if !s.bindJSON(c, &req) {
		return
	}

	act, err := s.reconciler.RecordActivity(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, act)
}

func (s *Server) handleSync(c *gin.Context) {
	var req model.Telemetry
	if !s.bindJSON(c, &req) {
		return
	}

	snap, err := s.reconciler.Reconcile(c.Request.Context(), reconcile.Request(req))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"synced": true, "data": snap})
}

// Chat.

func (s *Server) handleListChat(c *gin.Context) {
	limit, ok := s.queryLimit(c)
	if !ok {
		return
	}

	msgs, err := s.chat.List(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, msgs)
}

type sendChatRequest struct {
	Message string `json:"message"`
	// FromUser is nil for the viewers, the external actor sets it to false.
	FromUser *bool `json:"from_user"`
}

func (s *Server) handleSendChat(c *gin.Context) {
	var req sendChatRequest
	if !s.bindJSON(c, &req) {
		return
	}

	fromUser := true
	if req.FromUser != nil {
		fromUser = *req.FromUser
	}

	msg, err := s.chat.Send(c.Request.Context(), chat.SendRequest{Message: req.Message, FromUser: fromUser})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

type markReadRequest struct {
	LastID int64 `json:"last_id"`
}

func (s *Server) handleMarkChatRead(c *gin.Context) {
	var req markReadRequest
	if !s.bindJSON(c, &req) {
		return
	}

	marked, err := s.chat.MarkRead(c.Request.Context(), req.LastID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

func (s *Server) handleUnreadChat(c *gin.Context) {
	count, err := s.chat.UnreadCount(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// Tasks.

func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.tasks.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

type createTaskRequest struct {
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	Priority      model.TaskPriority `json:"priority"`
	EstimatedCost float64            `json:"estimated_cost"`
	Tags          []string           `json:"tags"`
	Metadata      map[string]any     `json:"metadata"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if !s.bindJSON(c, &req) {
		return
	}

	agg, err := s.tasks.Create(c.Request.Context(), task.CreateRequest{
		Title:         req.Title,
		Description:   req.Description,
		Priority:      req.Priority,
		EstimatedCost: req.EstimatedCost,
		Tags:          req.Tags,
		Metadata:      req.Metadata,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, agg)
}

func (s *Server) handleGetTask(c *gin.Context) {
	agg, err := s.tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, agg)
}

type transitionTaskRequest struct {
	Status model.TaskStatus `json:"status"`
	model.TaskUpdate
}

func (s *Server) handleTransitionTask(c *gin.Context) {
	var req transitionTaskRequest
	if !s.bindJSON(c, &req) {
		return
	}

	agg, err := s.tasks.Transition(c.Request.Context(), task.TransitionRequest{
		TaskID: c.Param("id"),
		Status: req.Status,
		Update: req.TaskUpdate,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, agg)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id := c.Param("id")
	if err := s.tasks.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

func (s *Server) handleListLogs(c *gin.Context) {
	limit, ok := s.queryLimit(c)
	if !ok {
		return
	}

	logs, err := s.details.ListLogs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

type appendLogRequest struct {
	Level   model.LogLevel `json:"level"`
	Message string         `json:"message"`
}

func (s *Server) handleAppendLog(c *gin.Context) {
	var req appendLogRequest
	if !s.bindJSON(c, &req) {
		return
	}

	l, err := s.details.AppendLog(c.Request.Context(), taskdetail.AppendLogRequest{
		TaskID:  c.Param("id"),
		Level:   req.Level,
		Message: req.Message,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, l)
}

func (s *Server) handleListTimeline(c *gin.Context) {
	events, err := s.details.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

type appendTimelineRequest struct {
	EventType string         `json:"event_type"`
	Title     string         `json:"title"`
	Details   map[string]any `json:"details"`
}

func (s *Server) handleAppendTimeline(c *gin.Context) {
	var req appendTimelineRequest
	if !s.bindJSON(c, &req) {
		return
	}

	e, err := s.details.AppendEvent(c.Request.Context(), taskdetail.AppendEventRequest{
		TaskID:    c.Param("id"),
		EventType: req.EventType,
		Title:     req.Title,
		Details:   req.Details,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, e)
}

func (s *Server) handleListAgents(c *gin.Context) {
	agents, err := s.details.ListAgents(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, agents)
}

type spawnAgentRequest struct {
	AgentID    string  `json:"agent_id"`
	SessionKey *string `json:"session_key"`
}

func (s *Server) handleSpawnAgent(c *gin.Context) {
	var req spawnAgentRequest
	if !s.bindJSON(c, &req) {
		return
	}

	a, err := s.details.SpawnAgent(c.Request.Context(), taskdetail.SpawnAgentRequest{
		TaskID:     c.Param("id"),
		AgentID:    req.AgentID,
		SessionKey: req.SessionKey,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, a)
}

func (s *Server) handleUpdateAgent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.writeError(c, fmt.Errorf("invalid agent id %q: %w", c.Param("id"), model.ErrNotValid))
		return
	}

	var req model.AgentUpdate
	if !s.bindJSON(c, &req) {
		return
	}

	a, err := s.details.UpdateAgent(c.Request.Context(), id, req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, a)
}

// API usage.

func (s *Server) handleLogAPIUsage(c *gin.Context) {
	var req model.UsageRecord
	if !s.bindJSON(c, &req) {
		return
	}

	u, err := s.usage.Log(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logged": true, "usage": u})
}

func (s *Server) handleListAPIUsage(c *gin.Context) {
	from, ok := s.queryDay(c, "start")
	if !ok {
		return
	}
	to, ok := s.queryDay(c, "end")
	if !ok {
		return
	}

	u, err := s.usage.List(c.Request.Context(), usage.ListRequest{From: from, To: to})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

func (s *Server) handleBudgetStatus(c *gin.Context) {
	status, err := s.usage.BudgetStatus(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
