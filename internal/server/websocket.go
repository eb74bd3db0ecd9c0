package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/slok/missionctl/internal/app/chat"
	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/conventions"
	"github.com/slok/missionctl/internal/log"
	"github.com/slok/missionctl/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from other origins and there is no auth at this layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSession is a viewer connected over a websocket. All the writes to the
// connection happen on its write loop, fed by a bounded queue.
type wsSession struct {
	id     string
	conn   *websocket.Conn
	queue  chan []byte
	done   chan struct{}
	once   sync.Once
	logger log.Logger
}

var _ broadcast.Session = &wsSession{}

func newWSSession(conn *websocket.Conn, queueSize int, logger log.Logger) *wsSession {
	id := ulid.Make().String()
	return &wsSession{
		id:     id,
		conn:   conn,
		queue:  make(chan []byte, queueSize),
		done:   make(chan struct{}),
		logger: logger.WithValues(log.Kv{"session": id}),
	}
}

func (w *wsSession) ID() string { return w.id }

// Send enqueues the frame, a closed session or a full queue reject it.
func (w *wsSession) Send(frame []byte) bool {
	select {
	case <-w.done:
		return false
	default:
	}

	select {
	case w.queue <- frame:
		return true
	default:
		return false
	}
}

func (w *wsSession) sendEvent(ev model.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		w.logger.Errorf("Could not marshal %s event: %s", ev.Type, err)
		return
	}
	if !w.Send(frame) {
		w.logger.Debugf("Session not writable, dropping %s event", ev.Type)
	}
}

func (w *wsSession) writeLoop() {
	for {
		select {
		case <-w.done:
			return
		case frame := <-w.queue:
			if err := w.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				w.logger.Debugf("Could not write frame: %s", err)
				w.close()
				return
			}
		}
	}
}

func (w *wsSession) close() {
	w.once.Do(func() {
		close(w.done)
		_ = w.conn.Close()
	})
}

// inboundMessage is a message sent by a viewer.
type inboundMessage struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
	Message  string `json:"message"`
}

func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader already replied to the client.
		s.logger.Warningf("Could not upgrade websocket connection: %s", err)
		return
	}

	conn.SetReadLimit(conventions.MaxViewerMessageSize)

	sess := newWSSession(conn, s.queueSize, s.logger.WithCtxValues(c.Request.Context()))
	go sess.writeLoop()

	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMu.Unlock()

	s.hub.Register(sess)
	defer func() {
		s.hub.Unregister(sess.id)

		s.sessionsMu.Lock()
		delete(s.sessions, sess.id)
		s.sessionsMu.Unlock()

		sess.close()
	}()

	ctx := s.logger.SetValuesOnCtx(c.Request.Context(), log.Kv{"session": sess.id})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.logger.Debugf("Websocket closed: %s", err)
			}
			return
		}

		s.handleInbound(ctx, sess, data)
	}
}

func (s *Server) handleInbound(ctx context.Context, sess *wsSession, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		sess.sendEvent(model.NewErrorEvent(fmt.Errorf("invalid message: %s: %w", err, model.ErrNotValid)))
		return
	}

	switch msg.Type {
	case "ping":
		sess.sendEvent(model.NewPongEvent())

	case "typing":
		s.hub.Broadcast(ctx, model.NewTypingEvent(true, msg.IsTyping), sess.id)

	case "chat":
		m, err := s.chat.Send(ctx, chat.SendRequest{
			Message:  msg.Message,
			FromUser: true,
			SenderID: sess.id,
		})
		if err != nil {
			sess.sendEvent(model.NewErrorEvent(err))
			return
		}
		// The sender is excluded from the broadcast, it gets its message back directly.
		sess.sendEvent(model.NewChatEvent(*m))

	default:
		sess.sendEvent(model.NewErrorEvent(fmt.Errorf("unknown message type %q: %w", msg.Type, model.ErrNotValid)))
	}
}
