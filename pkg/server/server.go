package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/hyperadar/internal/metrics"
	"github.com/elonfeng/hyperadar/pkg/alert"
	"github.com/elonfeng/hyperadar/pkg/hype"
	"github.com/elonfeng/hyperadar/pkg/interact"
	"github.com/elonfeng/hyperadar/pkg/layout"
	"github.com/elonfeng/hyperadar/pkg/style"
	"github.com/elonfeng/hyperadar/pkg/token"
	"github.com/elonfeng/hyperadar/pkg/view"
)

// Options configures the HTTP server and the views it opens.
type Options struct {
	Port           int
	Scoring        hype.Config
	Layout         layout.Config
	Viewport       interact.ViewportConfig
	AllowedOrigins []string
	WriteBuffer    int

	Alerts  *alert.Manager
	Metrics *metrics.Metrics
	Logger  *logrus.Entry

	// Tickers and Clock are injected into every view; nil uses the system.
	Tickers view.TickerFactory
	Clock   layout.Clock
}

// Server provides the HTTP API and the websocket view endpoint.
type Server struct {
	hub      *Hub
	opts     Options
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// New creates a new HTTP server.
func New(hub *Hub, opts Options) *Server {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if opts.Scoring == (hype.Config{}) {
		opts.Scoring = hype.DefaultConfig()
	}
	if opts.WriteBuffer <= 0 {
		opts.WriteBuffer = 16
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New("", nil)
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		opts.Logger = logrus.NewEntry(l)
	}
	s := &Server{
		hub:  hub,
		opts: opts,
		log:  opts.Logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.opts.Metrics.Handler())
	mux.HandleFunc("/api/v1/nodes", s.handleNodes)
	mux.HandleFunc("/api/v1/styles", s.handleStyles)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down and closes
// every open view.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", srv.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.hub.CloseAll()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.hub.CloseAll()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.opts.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "views": s.hub.Views()}
	if snap, ok := s.hub.Snapshot(); ok {
		resp["seq"] = snap.Seq
		resp["fetched_at"] = snap.FetchedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	cfg, err := ParseScoring(r.URL.Query(), s.opts.Scoring)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	snap, ok := s.hub.Snapshot()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no snapshot yet"})
		return
	}

	nodes := hype.Score(snap, cfg)
	writeJSON(w, http.StatusOK, map[string]any{
		"data":      nodes,
		"count":     len(nodes),
		"seq":       snap.Seq,
		"timeframe": cfg.Timeframe,
	})
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	templates := style.Templates()
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  templates,
		"count": len(templates),
	})
}

// ParseScoring overlays query parameters on base: timeframe, chain,
// min_liquidity, limit, q and the w_price, w_volume, w_txns, w_boost weights.
func ParseScoring(q url.Values, base hype.Config) (hype.Config, error) {
	cfg := base
	if v := q.Get("timeframe"); v != "" {
		tf, err := token.ParseTimeframe(v)
		if err != nil {
			return cfg, err
		}
		cfg.Timeframe = tf
	}
	if v := q.Get("chain"); v != "" {
		cfg.Chain = v
	}
	if v := q.Get("q"); v != "" {
		cfg.Query = v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid limit %q", v)
		}
		cfg.Limit = hype.ClampLimit(n)
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"min_liquidity", &cfg.MinLiquidity},
		{"w_price", &cfg.Weights.Price},
		{"w_volume", &cfg.Weights.Volume},
		{"w_txns", &cfg.Weights.Txns},
		{"w_boost", &cfg.Weights.Boost},
	}
	for _, f := range floats {
		v := q.Get(f.key)
		if v == "" {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
			return cfg, fmt.Errorf("invalid %s %q", f.key, v)
		}
		*f.dst = x
	}
	return cfg, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
