package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/hyperadar/internal/metrics"
	"github.com/elonfeng/hyperadar/pkg/hype"
	"github.com/elonfeng/hyperadar/pkg/interact"
	"github.com/elonfeng/hyperadar/pkg/layout"
	"github.com/elonfeng/hyperadar/pkg/token"
	"github.com/elonfeng/hyperadar/pkg/view"
)

// idleTicker never fires; frames come only from input.
type idleTicker struct{ c chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.c }
func (t idleTicker) Stop()               {}

func idleTickers(time.Duration) view.Ticker { return idleTicker{c: make(chan time.Time)} }

func sampleSnapshot(seq uint64, n int) token.Snapshot {
	records := make([]token.RawTokenRecord, n)
	for i := range records {
		records[i] = token.RawTokenRecord{
			Chain:       "solana",
			Address:     fmt.Sprintf("addr%02d", i),
			Symbol:      fmt.Sprintf("T%02d", i),
			Liquidity:   50000,
			Volume:      token.Windowed{H24: token.Number(1000 * (i + 1))},
			Buys:        token.Windowed{H24: token.Number(10 * (i + 1))},
			PriceChange: token.Windowed{H24: token.Number(i*4 - 8)},
		}
	}
	return token.Snapshot{Seq: seq, Records: records}
}

func newTestServer(t *testing.T) (*Server, *Hub, *metrics.Metrics) {
	t.Helper()
	hub := NewHub()
	m := metrics.New("", nil)
	s := New(hub, Options{
		Metrics: m,
		Tickers: idleTickers,
		Clock:   layout.NewManualClock(),
	})
	t.Cleanup(hub.CloseAll)
	return s, hub, m
}

func TestHealth(t *testing.T) {
	s, hub, _ := newTestServer(t)
	hub.Publish(sampleSnapshot(3, 2))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 3.0, body["seq"])
	assert.Equal(t, 0.0, body["views"])
}

func TestNodes(t *testing.T) {
	s, hub, _ := newTestServer(t)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nodes", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	hub.Publish(sampleSnapshot(1, 5))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nodes?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nodes?q=t0", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data  []token.Node `json:"data"`
		Count int          `json:"count"`
		Seq   uint64       `json:"seq"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Count)
	assert.Equal(t, uint64(1), body.Seq)
	for i := 1; i < len(body.Data); i++ {
		assert.GreaterOrEqual(t, body.Data[i-1].Hype, body.Data[i].Hype)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/nodes", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStyles(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/styles", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":`)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "view_active")
}

func TestParseScoring(t *testing.T) {
	base := hype.DefaultConfig()

	cfg, err := ParseScoring(url.Values{
		"timeframe":     {"1h"},
		"min_liquidity": {"500"},
		"limit":         {"9999"},
		"w_boost":       {"0"},
		"q":             {"pepe"},
	}, base)
	require.NoError(t, err)
	assert.Equal(t, token.Timeframe1h, cfg.Timeframe)
	assert.Equal(t, 500.0, cfg.MinLiquidity)
	assert.Equal(t, 300, cfg.Limit)
	assert.Equal(t, 0.0, cfg.Weights.Boost)
	assert.Equal(t, base.Weights.Price, cfg.Weights.Price)
	assert.Equal(t, "pepe", cfg.Query)

	for _, q := range []url.Values{
		{"timeframe": {"7d"}},
		{"limit": {"x"}},
		{"w_price": {"NaN"}},
		{"min_liquidity": {"+Inf"}},
	} {
		_, err := ParseScoring(q, base)
		assert.Error(t, err, q.Encode())
	}
}

func TestCheckOrigin(t *testing.T) {
	s, _, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "http://radar.local/ws", nil)
	assert.True(t, s.checkOrigin(r))

	r.Header.Set("Origin", "http://radar.local")
	assert.True(t, s.checkOrigin(r))

	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, s.checkOrigin(r))

	s.opts.AllowedOrigins = []string{"http://evil.example"}
	assert.True(t, s.checkOrigin(r))
}

func TestHub_PublishIgnoresStale(t *testing.T) {
	hub := NewHub()
	hub.Publish(sampleSnapshot(5, 1))
	hub.Publish(sampleSnapshot(4, 3))

	snap, ok := hub.Snapshot()
	require.True(t, ok)
	assert.Equal(t, uint64(5), snap.Seq)
	assert.Len(t, snap.Records, 1)
}

func drain(o *outbox) []ServerMessage {
	var out []ServerMessage
	for {
		msg, ok := o.pop()
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

func TestSession_KeepsStateEventsWhenFull(t *testing.T) {
	s, _, _ := newTestServer(t)
	sess := &session{out: newOutbox(1), server: s}

	sess.Frame(view.Frame{Seq: 1})
	sess.Selection(&token.Node{ID: "X"})
	sess.Frame(view.Frame{Seq: 2})
	sess.Hover(&interact.Popover{NodeID: "X"})
	sess.Hover(nil)

	queued, dropped := sess.out.stats()
	assert.Equal(t, 3, queued)
	assert.Equal(t, 1, dropped)

	got := drain(sess.out)
	require.Len(t, got, 3)
	assert.Equal(t, "selection", got[0].Type)
	assert.Equal(t, "X", got[0].Node.ID)
	assert.Equal(t, "frame", got[1].Type)
	assert.Equal(t, uint64(2), got[1].Frame.Seq)
	assert.Equal(t, "hover", got[2].Type)
	assert.Nil(t, got[2].Popover, "the latest hover wins")
}

func TestOutbox_NeverDropsControlMessages(t *testing.T) {
	o := newOutbox(2)
	o.push(ServerMessage{Type: "hello", View: "v"})
	for i := 0; i < 10; i++ {
		o.push(ServerMessage{Type: "frame", Frame: &view.Frame{Seq: uint64(i)}})
	}
	o.push(ServerMessage{Type: "error", Error: "bad"})
	o.push(ServerMessage{Type: "selection"})

	got := drain(o)
	types := make([]string, len(got))
	for i, m := range got {
		types[i] = m.Type
	}
	assert.Equal(t, []string{"hello", "frame", "frame", "error", "selection"}, types)
	assert.Equal(t, uint64(8), got[1].Frame.Seq)
	assert.Equal(t, uint64(9), got[2].Frame.Seq)

	_, dropped := o.stats()
	assert.Equal(t, 8, dropped)

	select {
	case <-o.wake:
	default:
	}
	o.push(ServerMessage{Type: "frame"})
	select {
	case <-o.wake:
	default:
		t.Fatal("push did not signal the writer")
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, want string) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == want {
			return msg
		}
	}
}

func TestWebsocket_ViewLifecycle(t *testing.T) {
	s, hub, m := newTestServer(t)
	hub.Publish(sampleSnapshot(1, 6))

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	hello := readUntil(t, conn, "hello")
	assert.NotEmpty(t, hello.View)
	assert.Eventually(t, func() bool { return hub.Views() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "resize", Width: 900}))
	frame := readUntil(t, conn, "frame")
	require.NotNil(t, frame.Frame)
	assert.Equal(t, 900.0, frame.Frame.Width)
	assert.Len(t, frame.Frame.Bubbles, 6)

	liq := 1e9
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "config", Config: &ConfigMessage{MinLiquidity: &liq}}))
	frame = readUntil(t, conn, "frame")
	assert.Empty(t, frame.Frame.Bubbles)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "teleport"}))
	errMsg := readUntil(t, conn, "error")
	assert.Contains(t, errMsg.Error, "teleport")

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Views() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(m.ActiveViews) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSMessages.WithLabelValues("in", "resize")))
}

func TestWebsocket_PublishReachesOpenViews(t *testing.T) {
	s, hub, _ := newTestServer(t)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	readUntil(t, conn, "hello")
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "resize", Width: 600}))
	assert.Eventually(t, func() bool { return hub.Views() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(sampleSnapshot(2, 3))
	frame := readUntil(t, conn, "frame")
	assert.Equal(t, uint64(2), frame.Frame.Seq)
	assert.Len(t, frame.Frame.Bubbles, 3)
}
