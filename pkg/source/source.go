package source

import (
	"context"
	"time"

	"github.com/elonfeng/hyperadar/pkg/token"
)

// Source produces deduplicated market snapshots.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (token.Snapshot, error)
}

// Recorder observes upstream calls. status is the HTTP status code as text,
// or "error" when no response arrived.
type Recorder interface {
	ObserveRequest(endpoint, status string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, string, time.Duration) {}
