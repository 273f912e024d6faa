package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elonfeng/hyperadar/pkg/token"
)

// Kind distinguishes what triggered a notification.
type Kind string

const (
	KindHot       Kind = "hot"
	KindSelection Kind = "selection"
)

// Notification is the data sent to alert destinations.
type Notification struct {
	Kind      Kind            `json:"kind"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	URL       string          `json:"url"`
	Hype      float64         `json:"hype"`
	Timeframe token.Timeframe `json:"timeframe"`
	Nodes     []token.Node    `json:"nodes"`
	At        time.Time       `json:"at"`
}

// ForSelection builds the notification for a node opened in a view.
func ForSelection(n token.Node, tf token.Timeframe) *Notification {
	return &Notification{
		Kind:      KindSelection,
		Title:     fmt.Sprintf("%s selected", label(n)),
		Body:      fmt.Sprintf("%+.2f%% over %s, hype %.3f", n.PriceChange, tf, n.Hype),
		URL:       n.URL,
		Hype:      n.Hype,
		Timeframe: tf,
		Nodes:     []token.Node{n},
		At:        time.Now().UTC(),
	}
}

func label(n token.Node) string {
	if n.Symbol != "" {
		return "$" + n.Symbol
	}
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
