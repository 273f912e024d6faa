package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/elonfeng/hyperadar/pkg/token"
)

// File replays a snapshot saved as JSON, for offline runs and demos. Each
// Fetch rereads the file and stamps a new sequence number.
type File struct {
	path string
	seq  atomic.Uint64
}

// NewFile creates a file-backed source.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Name() string { return "file" }

func (f *File) Fetch(ctx context.Context) (token.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return token.Snapshot{}, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return token.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap token.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return token.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", f.path, err)
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	snap.Seq = f.seq.Add(1)
	return snap, nil
}

// WriteFile saves snap so File can replay it.
func WriteFile(path string, snap token.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
