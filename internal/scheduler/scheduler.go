package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/hyperadar/internal/metrics"
	"github.com/elonfeng/hyperadar/pkg/alert"
	"github.com/elonfeng/hyperadar/pkg/hype"
	"github.com/elonfeng/hyperadar/pkg/source"
	"github.com/elonfeng/hyperadar/pkg/token"
	"github.com/elonfeng/hyperadar/pkg/trend"
)

// Publisher receives every fresh snapshot.
type Publisher interface {
	Publish(snap token.Snapshot)
}

// Scheduler runs periodic snapshot refresh and hot-token detection.
type Scheduler struct {
	source    source.Source
	publisher Publisher
	detector  *trend.Detector
	alertMgr  *alert.Manager
	scoring   hype.Config
	interval  time.Duration
	metrics   *metrics.Metrics
	log       *logrus.Entry
}

// New creates a new scheduler. detector, alertMgr and m may be nil.
func New(
	src source.Source,
	pub Publisher,
	detector *trend.Detector,
	alertMgr *alert.Manager,
	scoring hype.Config,
	interval time.Duration,
	m *metrics.Metrics,
	log *logrus.Entry,
) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = logrus.NewEntry(l)
	}
	return &Scheduler{
		source:    src,
		publisher: pub,
		detector:  detector,
		alertMgr:  alertMgr,
		scoring:   scoring,
		interval:  interval,
		metrics:   m,
		log:       log,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("initial refresh")
	s.Refresh(ctx)

	s.log.WithField("interval", s.interval).Info("running")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh fetches one snapshot, publishes it and runs detection. Failures
// are logged and the previous snapshot stays in place.
func (s *Scheduler) Refresh(ctx context.Context) bool {
	start := time.Now()
	snap, err := s.source.Fetch(ctx)
	if s.metrics != nil {
		s.metrics.RecordSnapshot(len(snap.Records), snap.FetchedAt, err)
	}
	if err != nil {
		s.log.WithError(err).WithField("source", s.source.Name()).Warn("refresh failed")
		return false
	}

	s.publisher.Publish(snap)

	nodes := hype.Score(snap, s.scoring)
	if s.metrics != nil {
		s.metrics.ScoredNodes.Set(float64(len(nodes)))
	}
	s.log.WithFields(logrus.Fields{
		"seq":     snap.Seq,
		"records": len(snap.Records),
		"nodes":   len(nodes),
		"took":    time.Since(start).Round(time.Millisecond),
	}).Info("snapshot published")

	s.detectAndAlert(ctx, nodes)
	return true
}

func (s *Scheduler) detectAndAlert(ctx context.Context, nodes []token.Node) {
	if s.detector == nil {
		return
	}
	hot := s.detector.Detect(nodes)
	if len(hot) == 0 || !s.alertMgr.HasNotifiers() {
		return
	}

	n := trend.Notification(hot, s.scoring.Timeframe)
	err := s.alertMgr.Broadcast(ctx, n)
	if s.metrics != nil {
		s.metrics.RecordAlert(string(n.Kind), err)
	}
	if err != nil {
		s.log.WithError(err).WithField("title", n.Title).Warn("alert failed")
		return
	}
	s.log.WithFields(logrus.Fields{"title": n.Title, "tokens": len(hot)}).Info("alerted")
}
