package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/slok/missionctl/internal/log"
	"github.com/slok/missionctl/internal/model"
	"github.com/slok/missionctl/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	tasks      map[string]model.Task
	logs       []model.TaskLog
	events     []model.TaskEvent
	agents     map[int64]model.TaskAgent
	status     model.DashboardStatus
	activities []model.Activity
	chat       []model.ChatMessage
	usage      map[usageKey]model.APIUsage
	lastID     int64
	mu         sync.RWMutex
	logger     log.Logger
}

var _ storage.Repository = &Repository{}

// NewRepository creates a new memory repository with the dashboard singleton
// initialized the same way the SQL schema does.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		tasks:  make(map[string]model.Task),
		agents: make(map[int64]model.TaskAgent),
		usage:  make(map[usageKey]model.APIUsage),
		status: model.DashboardStatus{
			Trading: model.TradingSnapshot{
				Equity: 100000,
				Status: model.TradingStatusIdle,
			},
			LastUpdated: now(),
		},
		logger: cfg.Logger,
	}, nil
}

// CreateTask creates a new task in the repository.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrAlreadyExists)
	}

	t.CreatedAt = stamp(t.CreatedAt)
	r.tasks[t.ID] = copyTask(t)
	r.logger.Debugf("Created task in repository: %s", t.ID)

	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	task = copyTask(task)
	return &task, nil
}

// ListTasks returns all tasks, newest first.
func (r *Repository) ListTasks(ctx context.Context) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, copyTask(t))
	}

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})

	return tasks, nil
}

// UpdateTask updates a task if its stored status is still fromStatus.
func (r *Repository) UpdateTask(ctx context.Context, t model.Task, fromStatus model.TaskStatus) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tasks[t.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	}
	if current.Status != fromStatus {
		return fmt.Errorf("task %s is no longer %s: %w", t.ID, fromStatus, model.ErrIllegalTransition)
	}

	// Creation time is immutable.
	t.CreatedAt = current.CreatedAt
	r.tasks[t.ID] = copyTask(t)
	r.logger.Debugf("Updated task in repository: %s (%s -> %s)", t.ID, fromStatus, t.Status)

	return nil
}

// DeleteTask deletes a task with all its nested entities.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	delete(r.tasks, id)
	r.logs = slices.DeleteFunc(r.logs, func(l model.TaskLog) bool { return l.TaskID == id })
	r.events = slices.DeleteFunc(r.events, func(e model.TaskEvent) bool { return e.TaskID == id })
	maps.DeleteFunc(r.agents, func(_ int64, a model.TaskAgent) bool { return a.TaskID == id })

	r.logger.Debugf("Deleted task from repository: %s", id)
	return nil
}

// CountTasksByStatus returns the number of tasks grouped by status.
func (r *Repository) CountTasksByStatus(ctx context.Context) (map[model.TaskStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[model.TaskStatus]int{}
	for _, t := range r.tasks {
		counts[t.Status]++
	}
	return counts, nil
}

// AddTaskLog appends a log line to a task.
func (r *Repository) AddTaskLog(ctx context.Context, l model.TaskLog) (*model.TaskLog, error) {
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task log: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[l.TaskID]; !ok {
		return nil, fmt.Errorf("task %s: %w", l.TaskID, model.ErrNotFound)
	}

	l.ID = r.nextID()
	l.Timestamp = stamp(l.Timestamp)
	r.logs = append(r.logs, l)

	return &l, nil
}

// ListTaskLogs returns the newest limit logs of a task, newest first.
func (r *Repository) ListTaskLogs(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	logs := []model.TaskLog{}
	for _, l := range r.logs {
		if l.TaskID == taskID {
			logs = append(logs, l)
		}
	}

	sortNewestFirst(logs, func(l model.TaskLog) (time.Time, int64) { return l.Timestamp, l.ID })
	return limitSlice(logs, limit), nil
}

// AddTaskEvent appends a timeline event to a task.
func (r *Repository) AddTaskEvent(ctx context.Context, e model.TaskEvent) (*model.TaskEvent, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[e.TaskID]; !ok {
		return nil, fmt.Errorf("task %s: %w", e.TaskID, model.ErrNotFound)
	}

	e.ID = r.nextID()
	e.Timestamp = stamp(e.Timestamp)
	e.Details = copyNullableMap(e.Details)
	r.events = append(r.events, e)

	e.Details = copyNullableMap(e.Details)
	return &e, nil
}

// ListTaskEvents returns the whole timeline of a task, newest first.
func (r *Repository) ListTaskEvents(ctx context.Context, taskID string) ([]model.TaskEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := []model.TaskEvent{}
	for _, e := range r.events {
		if e.TaskID == taskID {
			e.Details = copyNullableMap(e.Details)
			events = append(events, e)
		}
	}

	sortNewestFirst(events, func(e model.TaskEvent) (time.Time, int64) { return e.Timestamp, e.ID })
	return events, nil
}

// AddTaskAgent registers a sub-agent delegation of a task.
func (r *Repository) AddTaskAgent(ctx context.Context, a model.TaskAgent) (*model.TaskAgent, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task agent: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[a.TaskID]; !ok {
		return nil, fmt.Errorf("task %s: %w", a.TaskID, model.ErrNotFound)
	}

	a.ID = r.nextID()
	a.StartedAt = stamp(a.StartedAt)
	r.agents[a.ID] = copyAgent(a)

	return &a, nil
}

// GetTaskAgent retrieves a delegation by its store ID.
func (r *Repository) GetTaskAgent(ctx context.Context, id int64) (*model.TaskAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("task agent %d: %w", id, model.ErrNotFound)
	}

	a = copyAgent(a)
	return &a, nil
}

// UpdateTaskAgent applies a partial update to a delegation.
func (r *Repository) UpdateTaskAgent(ctx context.Context, id int64, u model.AgentUpdate) (*model.TaskAgent, error) {
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent update: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("task agent %d: %w", id, model.ErrNotFound)
	}

	a = copyAgent(a)
	u.ApplyTo(&a)
	a.StartedAt = a.StartedAt.Truncate(time.Millisecond)
	if a.CompletedAt != nil {
		completedAt := a.CompletedAt.Truncate(time.Millisecond)
		a.CompletedAt = &completedAt
	}
	r.agents[id] = a

	a = copyAgent(a)
	return &a, nil
}

// ListTaskAgents returns the delegations of a task, most recently started first.
func (r *Repository) ListTaskAgents(ctx context.Context, taskID string) ([]model.TaskAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := []model.TaskAgent{}
	for _, a := range r.agents {
		if a.TaskID == taskID {
			agents = append(agents, copyAgent(a))
		}
	}

	sortNewestFirst(agents, func(a model.TaskAgent) (time.Time, int64) { return a.StartedAt, a.ID })
	return agents, nil
}

// GetDashboardStatus returns the dashboard singleton.
func (r *Repository) GetDashboardStatus(ctx context.Context) (*model.DashboardStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.status
	return &s, nil
}

// UpdateDashboardStatus applies a partial update to the singleton.
func (r *Repository) UpdateDashboardStatus(ctx context.Context, u model.StatusUpdate) (*model.DashboardStatus, error) {
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("invalid status update: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u.ApplyTo(&r.status)
	r.status.LastUpdated = now()

	s := r.status
	return &s, nil
}

// AddActivity appends an activity to the feed.
func (r *Repository) AddActivity(ctx context.Context, a model.Activity) (*model.Activity, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid activity: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a.ID = r.nextID()
	a.Timestamp = stamp(a.Timestamp)
	a.Metadata = copyNullableMap(a.Metadata)
	r.activities = append(r.activities, a)

	a.Metadata = copyNullableMap(a.Metadata)
	return &a, nil
}

// ListActivities returns the newest limit activities, newest first.
func (r *Repository) ListActivities(ctx context.Context, limit int) ([]model.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return limitSlice(r.sortedActivities(), limit), nil
}

// PruneActivities deletes everything but the newest keep activities.
func (r *Repository) PruneActivities(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep can't be negative: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.activities) <= keep {
		return 0, nil
	}

	deleted := len(r.activities) - keep
	r.activities = slices.Clone(r.sortedActivities()[:keep])
	r.logger.Debugf("Pruned %d activities", deleted)

	return deleted, nil
}

// AddChatMessage stores a chat message.
func (r *Repository) AddChatMessage(ctx context.Context, m model.ChatMessage) (*model.ChatMessage, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat message: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m.ID = r.nextID()
	m.Timestamp = stamp(m.Timestamp)
	r.chat = append(r.chat, m)

	return &m, nil
}

// ListChatMessages returns the newest limit messages in conversation order.
func (r *Repository) ListChatMessages(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := slices.Clone(r.chat)
	sortNewestFirst(msgs, func(m model.ChatMessage) (time.Time, int64) { return m.Timestamp, m.ID })
	msgs = limitSlice(msgs, limit)
	slices.Reverse(msgs)

	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return msgs, nil
}

// MarkChatRead marks as read every unread message up to lastID.
func (r *Repository) MarkChatRead(ctx context.Context, lastID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	marked := 0
	for i, m := range r.chat {
		if m.ID <= lastID && !m.Read {
			r.chat[i].Read = true
			marked++
		}
	}

	return marked, nil
}

// CountUnreadChat counts the unread messages that don't come from the user.
func (r *Repository) CountUnreadChat(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, m := range r.chat {
		if !m.FromUser && !m.Read {
			count++
		}
	}

	return count, nil
}

type usageKey struct{ day, model string }

// RecordAPIUsage adds the request to the day and model totals.
func (r *Repository) RecordAPIUsage(ctx context.Context, day string, rec model.UsageRecord) (*model.APIUsage, error) {
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid usage record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := usageKey{day: day, model: rec.Model}
	u, ok := r.usage[key]
	if !ok {
		u = model.APIUsage{ID: r.nextID(), UsageDate: day, Model: rec.Model}
	}
	u.Requests++
	u.TokensIn += rec.TokensIn
	u.TokensOut += rec.TokensOut
	u.Cost += rec.Cost
	r.usage[key] = u

	return &u, nil
}

// ListAPIUsage returns the totals between the days, newest day first.
func (r *Repository) ListAPIUsage(ctx context.Context, fromDay, toDay string) ([]model.APIUsage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	usage := []model.APIUsage{}
	for k, u := range r.usage {
		if k.day >= fromDay && k.day <= toDay {
			usage = append(usage, u)
		}
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].UsageDate != usage[j].UsageDate {
			return usage[i].UsageDate > usage[j].UsageDate
		}
		return usage[i].Model < usage[j].Model
	})

	return usage, nil
}

// SumAPIUsageCost sums the cost between the days.
func (r *Repository) SumAPIUsageCost(ctx context.Context, fromDay, toDay string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0.0
	for k, u := range r.usage {
		if k.day >= fromDay && k.day <= toDay {
			total += u.Cost
		}
	}

	return total, nil
}

// nextID must be called with the write lock held.
func (r *Repository) nextID() int64 {
	r.lastID++
	return r.lastID
}

func (r *Repository) sortedActivities() []model.Activity {
	acts := make([]model.Activity, 0, len(r.activities))
	for _, a := range r.activities {
		a.Metadata = copyNullableMap(a.Metadata)
		acts = append(acts, a)
	}
	sortNewestFirst(acts, func(a model.Activity) (time.Time, int64) { return a.Timestamp, a.ID })
	return acts
}

func sortNewestFirst[T any](s []T, key func(T) (time.Time, int64)) {
	sort.SliceStable(s, func(i, j int) bool {
		ti, idi := key(s[i])
		tj, idj := key(s[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi > idj
	})
}

func limitSlice[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

// The SQL store keeps millisecond precision, both stores return the same times.
func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return now()
	}
	return t.UTC().Truncate(time.Millisecond)
}

func copyTask(t model.Task) model.Task {
	t.Tags = slices.Clone(t.Tags)
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.Metadata = maps.Clone(t.Metadata)
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	t.ETA = copyTime(t.ETA)
	t.StartedAt = copyTime(t.StartedAt)
	t.CompletedAt = copyTime(t.CompletedAt)
	if t.Assignee != nil {
		assignee := *t.Assignee
		t.Assignee = &assignee
	}
	return t
}

func copyAgent(a model.TaskAgent) model.TaskAgent {
	a.CompletedAt = copyTime(a.CompletedAt)
	if a.SessionKey != nil {
		key := *a.SessionKey
		a.SessionKey = &key
	}
	return a
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := t.UTC().Truncate(time.Millisecond)
	return &c
}

// copyNullableMap mirrors the SQL store where empty maps are stored as NULL.
func copyNullableMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}
