package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/hyperadar/internal/config"
	"github.com/elonfeng/hyperadar/internal/logging"
	"github.com/elonfeng/hyperadar/internal/metrics"
	"github.com/elonfeng/hyperadar/internal/scheduler"
	"github.com/elonfeng/hyperadar/pkg/alert"
	"github.com/elonfeng/hyperadar/pkg/hype"
	"github.com/elonfeng/hyperadar/pkg/layout"
	"github.com/elonfeng/hyperadar/pkg/server"
	"github.com/elonfeng/hyperadar/pkg/source"
	"github.com/elonfeng/hyperadar/pkg/token"
	"github.com/elonfeng/hyperadar/pkg/trend"
)

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setup() (*config.Config, *logging.Log, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, log, nil
}

func buildSource(cfg *config.Config, m *metrics.Metrics) source.Source {
	if cfg.Source.SnapshotFile != "" {
		return source.NewFile(cfg.Source.SnapshotFile)
	}
	opts := source.Options{
		BaseURL:     cfg.Source.BaseURL,
		Chain:       cfg.Source.Chain,
		MaxTokens:   cfg.Source.MaxTokens,
		RPS:         cfg.Source.RPS,
		Burst:       cfg.Source.Burst,
		Concurrency: cfg.Source.Concurrency,
		Timeout:     cfg.Source.ParseTimeout(),
	}
	if m != nil {
		opts.Recorder = m
	}
	return source.NewDexScreener(opts)
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		kinds := make([]alert.Kind, len(cfg.Alerts.Webhook.Kinds))
		for i, k := range cfg.Alerts.Webhook.Kinds {
			kinds[i] = alert.Kind(k)
		}
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret, kinds...))
	}

	return alert.NewManager(notifiers)
}

// scoringWith overlays command-line overrides on the configured scoring.
func scoringWith(base hype.Config, timeframe string, limit int, query string) (hype.Config, error) {
	cfg := base
	if timeframe != "" {
		tf, err := token.ParseTimeframe(timeframe)
		if err != nil {
			return cfg, err
		}
		cfg.Timeframe = tf
	}
	if limit != 0 {
		cfg.Limit = hype.ClampLimit(limit)
	}
	if query != "" {
		cfg.Query = query
	}
	return cfg, nil
}

func runFetch(ctx context.Context, out string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	src := buildSource(cfg, nil)
	log.WithComponent("fetch").WithField("source", src.Name()).Info("fetching snapshot")
	snap, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := source.WriteFile(out, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	fmt.Fprintf(os.Stderr, "saved %d records, %d boosts to %s\n", len(snap.Records), len(snap.Boosts), out)
	return nil
}

type rankOptions struct {
	json      bool
	timeframe string
	limit     int
	query     string
	show      int
}

func runRank(ctx context.Context, opts rankOptions) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	scoring, err := scoringWith(cfg.Scoring, opts.timeframe, opts.limit, opts.query)
	if err != nil {
		return err
	}

	snap, err := buildSource(cfg, nil).Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	nodes := hype.Score(snap, scoring)

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	}

	if len(nodes) == 0 {
		fmt.Println("no tokens passed the filters (try a lower min_liquidity)")
		return nil
	}

	up := color.New(color.FgGreen).SprintfFunc()
	down := color.New(color.FgRed).SprintfFunc()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "#\tHYPE\tSYMBOL\tLIQUIDITY\tVOLUME\tTXNS\tCHANGE %s\n", scoring.Timeframe)
	for i, n := range nodes {
		if opts.show > 0 && i >= opts.show {
			break
		}
		change := up("%+.2f%%", n.PriceChange)
		if n.PriceChange < 0 {
			change = down("%+.2f%%", n.PriceChange)
		}
		fmt.Fprintf(w, "%d\t%.3f\t%s\t%.0f\t%.0f\t%.0f\t%s\n",
			i+1, n.Hype, n.Symbol, n.Liquidity, n.Volume, n.Txns, change)
	}
	return w.Flush()
}

type layoutOptions struct {
	width     float64
	steps     int
	timeframe string
}

type layoutResult struct {
	Generation uint64             `json:"generation"`
	Steps      uint64             `json:"steps"`
	Alpha      float64            `json:"alpha"`
	Dims       layout.Dims        `json:"dims"`
	Placements []layout.Placement `json:"placements"`
}

func runLayout(ctx context.Context, opts layoutOptions) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	if opts.width <= 0 {
		return errors.New("width must be positive")
	}
	scoring, err := scoringWith(cfg.Scoring, opts.timeframe, 0, "")
	if err != nil {
		return err
	}

	snap, err := buildSource(cfg, nil).Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	nodes := hype.Score(snap, scoring)

	clock := layout.NewManualClock()
	engine := layout.NewEngine(cfg.Layout, clock)
	engine.Restart(nodes, layout.Dims{Width: opts.width, Height: cfg.Viewport.Height(opts.width)})
	for i := 0; i < opts.steps; i++ {
		clock.Advance(engine.Config().TickInterval)
		engine.Step()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(layoutResult{
		Generation: engine.Generation(),
		Steps:      engine.Steps(),
		Alpha:      engine.Alpha(),
		Dims:       engine.Dims(),
		Placements: engine.Placements(),
	})
}

// runServe starts the server. With periodic set it also runs the refresh
// scheduler and hot-token alerts; otherwise it serves one snapshot.
func runServe(ctx context.Context, port int, periodic bool) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New(cfg.Server.MetricsNamespace, nil)
	alertMgr := buildAlertManager(cfg)
	hub := server.NewHub()

	var detector *trend.Detector
	if periodic {
		detector = trend.NewDetector(cfg.Trend)
	}
	sched := scheduler.New(buildSource(cfg, m), hub, detector, alertMgr,
		cfg.Scoring, cfg.Schedule.ParseRefreshInterval(), m, log.WithComponent("scheduler"))

	if periodic {
		go func() {
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("scheduler stopped")
			}
		}()
	} else if !sched.Refresh(ctx) {
		return errors.New("initial snapshot failed")
	}

	srv := server.New(hub, server.Options{
		Port:           port,
		Scoring:        cfg.Scoring,
		Layout:         cfg.Layout,
		Viewport:       cfg.Viewport,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		WriteBuffer:    cfg.Server.WriteBuffer,
		Alerts:         alertMgr,
		Metrics:        m,
		Logger:         log.WithComponent("server"),
	})

	log.WithFields(logrus.Fields{
		"port":      port,
		"periodic":  periodic,
		"timeframe": cfg.Scoring.Timeframe,
	}).Info("starting")

	err = srv.ListenAndServe(ctx)
	log.Info("shut down")
	return err
}
