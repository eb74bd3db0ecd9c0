package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/slok/missionctl/internal/app/chat"
	"github.com/slok/missionctl/internal/app/dashboard"
	"github.com/slok/missionctl/internal/app/reconcile"
	"github.com/slok/missionctl/internal/app/task"
	"github.com/slok/missionctl/internal/app/taskdetail"
	"github.com/slok/missionctl/internal/app/usage"
	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/conventions"
	"github.com/slok/missionctl/internal/log"
)

// Config is the configuration for the dashboard server.
type Config struct {
	Tasks      *task.Service
	Details    *taskdetail.Service
	Dashboard  *dashboard.Service
	Reconciler *reconcile.Service
	Chat       *chat.Service
	Usage      *usage.Service
	Hub        *broadcast.Hub
	Logger     log.Logger
	// SessionQueueSize is the number of frames buffered per viewer.
	SessionQueueSize int
}

func (c *Config) defaults() error {
	if c.Tasks == nil {
		return fmt.Errorf("tasks service is required")
	}
	if c.Details == nil {
		return fmt.Errorf("task details service is required")
	}
	if c.Dashboard == nil {
		return fmt.Errorf("dashboard service is required")
	}
	if c.Reconciler == nil {
		return fmt.Errorf("reconciler service is required")
	}
	if c.Chat == nil {
		return fmt.Errorf("chat service is required")
	}
	if c.Usage == nil {
		return fmt.Errorf("api usage service is required")
	}
	if c.Hub == nil {
		return fmt.Errorf("hub is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "server.HTTP"})
	if c.SessionQueueSize <= 0 {
		c.SessionQueueSize = conventions.DefaultSessionQueueSize
	}
	return nil
}

// Server exposes the dashboard operations over a REST API and pushes the domain
// events to the viewers connected to the websocket endpoint.
type Server struct {
	tasks      *task.Service
	details    *taskdetail.Service
	dashboard  *dashboard.Service
	reconciler *reconcile.Service
	chat       *chat.Service
	usage      *usage.Service
	hub        *broadcast.Hub
	logger     log.Logger
	queueSize  int
	router     *gin.Engine

	sessions   map[string]*wsSession
	sessionsMu sync.Mutex
}

// New creates a new dashboard server.
func New(cfg Config) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		tasks:      cfg.Tasks,
		details:    cfg.Details,
		dashboard:  cfg.Dashboard,
		reconciler: cfg.Reconciler,
		chat:       cfg.Chat,
		usage:      cfg.Usage,
		hub:        cfg.Hub,
		logger:     cfg.Logger,
		queueSize:  cfg.SessionQueueSize,
		sessions:   map[string]*wsSession{},
	}

	router := gin.New()
	router.Use(gin.Recovery(), logRequests(cfg.Logger))

	router.GET("/ws", s.handleWebsocket)

	api := router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/dashboard", s.handleDashboard)

		api.GET("/activities", s.handleListActivities)
		api.POST("/activities", s.handleRecordActivity)
		api.POST("/sync", s.handleSync)

		api.GET("/chat", s.handleListChat)
		api.POST("/chat", s.handleSendChat)
		api.POST("/chat/read", s.handleMarkChatRead)
		api.GET("/chat/unread", s.handleUnreadChat)

		api.GET("/api-usage", s.handleListAPIUsage)
		api.POST("/api-usage/log", s.handleLogAPIUsage)
		api.GET("/budget-status", s.handleBudgetStatus)

		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks/:id", s.handleGetTask)
		api.PUT("/tasks/:id", s.handleTransitionTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.GET("/tasks/:id/logs", s.handleListLogs)
		api.POST("/tasks/:id/logs", s.handleAppendLog)
		api.GET("/tasks/:id/timeline", s.handleListTimeline)
		api.POST("/tasks/:id/timeline", s.handleAppendTimeline)
		api.GET("/tasks/:id/agents", s.handleListAgents)
		api.POST("/tasks/:id/spawn-agent", s.handleSpawnAgent)
		api.PUT("/agents/:id", s.handleUpdateAgent)
	}

	s.router = router
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

// CloseSessions disconnects every connected viewer. HTTP server shutdown doesn't
// wait for hijacked websocket connections.
func (s *Server) CloseSessions() {
	s.sessionsMu.Lock()
	sessions := make([]*wsSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessionsMu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

// RequestIDHeader carries the request id, a missing one is generated.
const RequestIDHeader = "X-Request-Id"

// logRequests stores the request id on the request context so the services log it.
func logRequests(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = ulid.Make().String()
		}
		c.Header(RequestIDHeader, id)
		ctx := logger.SetValuesOnCtx(c.Request.Context(), log.Kv{"request_id": id})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
		logger.WithCtxValues(ctx).Debugf("%s %s %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
