package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/hyperadar/pkg/alert"
	"github.com/elonfeng/hyperadar/pkg/hype"
	"github.com/elonfeng/hyperadar/pkg/interact"
	"github.com/elonfeng/hyperadar/pkg/token"
	"github.com/elonfeng/hyperadar/pkg/view"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 8 << 10
)

// ClientMessage is one input event from a renderer.
type ClientMessage struct {
	Type   string         `json:"type"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
	DX     float64        `json:"dx"`
	DY     float64        `json:"dy"`
	Delta  float64        `json:"delta"`
	Scale  float64        `json:"scale"`
	Width  float64        `json:"width"`
	Config *ConfigMessage `json:"config,omitempty"`
}

// ConfigMessage changes scoring for one view. Absent fields keep their value.
type ConfigMessage struct {
	Timeframe    string        `json:"timeframe,omitempty"`
	MinLiquidity *float64      `json:"min_liquidity,omitempty"`
	Limit        int           `json:"limit,omitempty"`
	Query        *string       `json:"query,omitempty"`
	Weights      *hype.Weights `json:"weights,omitempty"`
}

// apply overlays m on cfg.
func (m ConfigMessage) apply(cfg hype.Config) (hype.Config, error) {
	if m.Timeframe != "" {
		tf, err := token.ParseTimeframe(m.Timeframe)
		if err != nil {
			return cfg, err
		}
		cfg.Timeframe = tf
	}
	if m.MinLiquidity != nil && *m.MinLiquidity >= 0 {
		cfg.MinLiquidity = *m.MinLiquidity
	}
	if m.Limit != 0 {
		cfg.Limit = hype.ClampLimit(m.Limit)
	}
	if m.Query != nil {
		cfg.Query = *m.Query
	}
	if m.Weights != nil {
		cfg.Weights = *m.Weights
	}
	return cfg, nil
}

// ServerMessage is one output event to a renderer.
type ServerMessage struct {
	Type    string            `json:"type"`
	View    string            `json:"view,omitempty"`
	Frame   *view.Frame       `json:"frame,omitempty"`
	Node    *token.Node       `json:"node,omitempty"`
	Popover *interact.Popover `json:"popover,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// outbox queues messages for one connection in order. Frames beyond limit
// evict the oldest queued frame, since a newer one supersedes it. Every
// other message is kept; consecutive hover or selection updates collapse to
// the latest.
type outbox struct {
	mu      sync.Mutex
	queue   []ServerMessage
	frames  int
	limit   int
	dropped int
	wake    chan struct{}
}

func newOutbox(limit int) *outbox {
	if limit < 1 {
		limit = 1
	}
	return &outbox{limit: limit, wake: make(chan struct{}, 1)}
}

func (o *outbox) push(msg ServerMessage) {
	o.mu.Lock()
	switch msg.Type {
	case "frame":
		if o.frames >= o.limit {
			o.evictFrame()
		}
		o.frames++
		o.queue = append(o.queue, msg)
	case "hover", "selection":
		if n := len(o.queue); n > 0 && o.queue[n-1].Type == msg.Type {
			o.queue[n-1] = msg
		} else {
			o.queue = append(o.queue, msg)
		}
	default:
		o.queue = append(o.queue, msg)
	}
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// evictFrame drops the oldest queued frame. Callers hold mu.
func (o *outbox) evictFrame() {
	for i, m := range o.queue {
		if m.Type == "frame" {
			o.queue = append(o.queue[:i], o.queue[i+1:]...)
			o.frames--
			o.dropped++
			return
		}
	}
}

// pop removes the next message, if any.
func (o *outbox) pop() (ServerMessage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return ServerMessage{}, false
	}
	msg := o.queue[0]
	o.queue[0] = ServerMessage{}
	o.queue = o.queue[1:]
	if msg.Type == "frame" {
		o.frames--
	}
	return msg, true
}

func (o *outbox) stats() (queued, dropped int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue), o.dropped
}

// session bridges one websocket connection and one view.
type session struct {
	id     string
	conn   *websocket.Conn
	out    *outbox
	done   chan struct{}
	server *Server
	log    *logrus.Entry
}

// push queues msg without blocking the view goroutine.
func (s *session) push(msg ServerMessage) {
	s.out.push(msg)
	s.server.opts.Metrics.WSMessages.WithLabelValues("out", msg.Type).Inc()
}

func (s *session) Frame(f view.Frame) {
	s.push(ServerMessage{Type: "frame", Frame: &f})
}

func (s *session) Selection(n *token.Node) {
	s.push(ServerMessage{Type: "selection", Node: n})
}

func (s *session) Hover(p *interact.Popover) {
	s.push(ServerMessage{Type: "hover", Popover: p})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	sess := &session{
		id:     id,
		conn:   conn,
		out:    newOutbox(s.opts.WriteBuffer),
		done:   make(chan struct{}),
		server: s,
		log:    s.log.WithField("view", id),
	}

	v := view.New(view.Options{
		ID:       id,
		Scoring:  s.opts.Scoring,
		Layout:   s.opts.Layout,
		Viewport: s.opts.Viewport,
		Clock:    s.opts.Clock,
		Tickers:  s.opts.Tickers,
		Sink:     sess,
		Logger:   s.log,
		Metrics:  s.opts.Metrics,
		OnSelect: s.notifySelection,
	})
	sess.log.Info("view opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sess.writeLoop()
	}()

	sess.push(ServerMessage{Type: "hello", View: id})
	s.hub.attach(v)
	sess.readLoop(v)

	s.hub.detach(id)
	v.Close()
	close(sess.done)
	<-writerDone
	conn.Close()
	_, dropped := sess.out.stats()
	sess.log.WithField("dropped_frames", dropped).Info("view closed")
}

func (s *session) readLoop(v *view.View) {
	s.conn.SetReadLimit(maxMessage)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.WithError(err).Debug("read failed")
			}
			return
		}
		s.server.opts.Metrics.WSMessages.WithLabelValues("in", msg.Type).Inc()
		if err := s.dispatch(v, msg); err != nil {
			s.push(ServerMessage{Type: "error", Error: err.Error()})
		}
	}
}

type dispatchError string

func (e dispatchError) Error() string { return string(e) }

func (s *session) dispatch(v *view.View, msg ClientMessage) error {
	switch msg.Type {
	case "config":
		if msg.Config == nil {
			return dispatchError("config message without config")
		}
		cfg, err := msg.Config.apply(v.Config())
		if err != nil {
			return err
		}
		v.SetConfig(cfg)
	case "resize":
		v.Resize(msg.Width)
	case "click":
		v.Click(msg.X, msg.Y)
	case "hover":
		v.Hover(msg.X, msg.Y)
	case "leave":
		v.Leave()
	case "drag_start":
		v.DragStart(msg.X, msg.Y)
	case "drag_move":
		v.DragMove(msg.X, msg.Y)
	case "drag_end":
		v.DragEnd()
	case "zoom_in":
		v.ZoomIn()
	case "zoom_out":
		v.ZoomOut()
	case "zoom_reset":
		v.ZoomReset()
	case "wheel":
		v.Wheel(msg.Delta, msg.X, msg.Y)
	case "pinch":
		v.Pinch(msg.Scale, msg.X, msg.Y)
	case "pan":
		v.Pan(msg.DX, msg.DY)
	case "close_selection":
		v.ClearSelection()
	default:
		return dispatchError("unknown message type " + msg.Type)
	}
	return nil
}

func (s *session) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-s.out.wake:
			for {
				msg, ok := s.out.pop()
				if !ok {
					break
				}
				s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := s.conn.WriteJSON(msg); err != nil {
					s.log.WithError(err).Debug("write failed")
					s.conn.Close()
					return
				}
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}
		}
	}
}

// notifySelection forwards an opened node to the alert manager off the view
// goroutine.
func (s *Server) notifySelection(n token.Node, tf token.Timeframe) {
	if !s.opts.Alerts.HasNotifiers() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.opts.Alerts.Broadcast(ctx, alert.ForSelection(n, tf))
		s.opts.Metrics.RecordAlert(string(alert.KindSelection), err)
		if err != nil {
			s.log.WithError(err).WithField("token", n.ID).Warn("selection alert failed")
		}
	}()
}
