package model

import "encoding/json"

// EventType is the kind of a domain event pushed to the viewers.
type EventType string

const (
	EventTypeTaskUpdate   EventType = "task_update"
	EventTypeTaskDeleted  EventType = "task_deleted"
	EventTypeTaskLog      EventType = "task_log"
	EventTypeTaskEvent    EventType = "task_event"
	EventTypeTaskAgent    EventType = "task_agent"
	EventTypeStatusUpdate EventType = "status_update"
	EventTypeAPIUsage     EventType = "api_usage_update"
	EventTypeConnected    EventType = "connected"
	EventTypeClients      EventType = "clients"
	EventTypeActivity     EventType = "activity"
	EventTypeChat         EventType = "chat"
	EventTypeTyping       EventType = "typing"
	EventTypePong         EventType = "pong"
	EventTypeError        EventType = "error"
)

// Event is the wire envelope of every event, only the fields of its type are set.
// Status updates and API usage updates share the data key.
type Event struct {
	Type          EventType          `json:"type"`
	TaskID        string             `json:"task_id,omitempty"`
	Task          *TaskAggregate     `json:"task,omitempty"`
	Log           *TaskLog           `json:"log,omitempty"`
	TimelineEvent *TaskEvent         `json:"event,omitempty"`
	Agent         *TaskAgent         `json:"agent,omitempty"`
	Data          *DashboardSnapshot `json:"data,omitempty"`
	Usage         *UsageRecord       `json:"-"`
	Activity      *Activity          `json:"activity,omitempty"`
	Message       *ChatMessage       `json:"message,omitempty"`
	Clients       *int               `json:"clients,omitempty"`
	Count         *int               `json:"count,omitempty"`
	FromUser      *bool              `json:"from_user,omitempty"`
	IsTyping      *bool              `json:"is_typing,omitempty"`
	Error         string             `json:"error,omitempty"`
	Kind          ErrorKind          `json:"kind,omitempty"`
}

func NewTaskUpdateEvent(t TaskAggregate) Event {
	return Event{Type: EventTypeTaskUpdate, TaskID: t.ID, Task: &t}
}

func NewTaskDeletedEvent(taskID string) Event {
	return Event{Type: EventTypeTaskDeleted, TaskID: taskID}
}

func NewTaskLogEvent(l TaskLog) Event {
	return Event{Type: EventTypeTaskLog, TaskID: l.TaskID, Log: &l}
}

func NewTaskEventEvent(e TaskEvent) Event {
	return Event{Type: EventTypeTaskEvent, TaskID: e.TaskID, TimelineEvent: &e}
}

func NewTaskAgentEvent(a TaskAgent) Event {
	return Event{Type: EventTypeTaskAgent, TaskID: a.TaskID, Agent: &a}
}

func NewStatusUpdateEvent(s DashboardSnapshot) Event {
	return Event{Type: EventTypeStatusUpdate, Data: &s}
}

func NewAPIUsageEvent(r UsageRecord) Event {
	return Event{Type: EventTypeAPIUsage, Usage: &r}
}

func NewConnectedEvent(population int) Event {
	return Event{Type: EventTypeConnected, Clients: &population}
}

func NewClientsEvent(population int) Event {
	return Event{Type: EventTypeClients, Count: &population}
}

func NewActivityEvent(a Activity) Event {
	return Event{Type: EventTypeActivity, Activity: &a}
}

func NewChatEvent(m ChatMessage) Event {
	return Event{Type: EventTypeChat, Message: &m}
}

func NewTypingEvent(fromUser, isTyping bool) Event {
	return Event{Type: EventTypeTyping, FromUser: &fromUser, IsTyping: &isTyping}
}

func NewPongEvent() Event {
	return Event{Type: EventTypePong}
}

func NewErrorEvent(err error) Event {
	return Event{Type: EventTypeError, Error: err.Error(), Kind: KindOf(err)}
}

type eventFields Event

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Usage == nil {
		return json.Marshal(eventFields(e))
	}

	return json.Marshal(struct {
		eventFields
		Usage *UsageRecord `json:"data"`
	}{eventFields: eventFields(e), Usage: e.Usage})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var ev struct {
		eventFields
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &ev); err != nil {
		return err
	}

	*e = Event(ev.eventFields)
	if len(ev.Data) == 0 || string(ev.Data) == "null" {
		return nil
	}

	if e.Type == EventTypeAPIUsage {
		e.Usage = &UsageRecord{}
		return json.Unmarshal(ev.Data, e.Usage)
	}
	e.Data = &DashboardSnapshot{}
	return json.Unmarshal(ev.Data, e.Data)
}
