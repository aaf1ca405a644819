package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fairtrace/trace-core/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
	// maxFrameSize bounds inbound frames; location updates are tiny
	maxFrameSize = 4 * 1024
)

// session is one websocket connection attached to the hub
type session struct {
	id         string
	conn       *websocket.Conn
	hub        *Hub
	canPublish bool

	// writeMu serializes writes: fan-outs and pings race on the same conn
	writeMu sync.Mutex
	done    chan struct{}
}

func newSession(conn *websocket.Conn, hub *Hub, canPublish bool) *session {
	return &session{
		id:         uuid.NewString(),
		conn:       conn,
		hub:        hub,
		canPublish: canPublish,
		done:       make(chan struct{}),
	}
}

// ID implements Subscriber
func (s *session) ID() string {
	return s.id
}

// Send implements Subscriber
func (s *session) Send(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// run processes inbound frames until the connection drops, then detaches the
// session from every room it had joined
func (s *session) run() {
	defer func() {
		close(s.done)
		s.hub.Disconnect(s)
		_ = s.conn.Close()
	}()

	go s.pingLoop()

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					zap.String("conn", s.id),
					zap.Error(err))
			}
			return
		}
		s.dispatch(data)
	}
}

func (s *session) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Debug("ignoring malformed frame", zap.String("conn", s.id))
		return
	}

	switch env.Event {
	case EventSubscribe:
		if env.Room != "" {
			s.hub.Subscribe(s, env.Room)
		}
	case EventUnsubscribe:
		if env.Room != "" {
			s.hub.Unsubscribe(s, env.Room)
		}
	case EventLocationUpdate:
		if !s.canPublish {
			// Best-effort policy: unauthorized publishes are dropped, not errored
			logger.Warn("dropping location update from unauthorized publisher",
				zap.String("conn", s.id))
			return
		}
		s.hub.Publish(env.Data)
	default:
		logger.Debug("ignoring unknown event",
			zap.String("conn", s.id),
			zap.String("event", env.Event))
	}
}

func (s *session) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
