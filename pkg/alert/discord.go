package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Discord sends hot-token alerts via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	if n.Kind != KindHot {
		return nil
	}

	var links []string
	for _, node := range n.Nodes[:min(maxListed, len(n.Nodes))] {
		links = append(links, fmt.Sprintf("• [%s](%s) %+.1f%%", label(node), node.URL, node.PriceChange))
	}

	color := 0x22C55E
	if len(n.Nodes) > 0 && n.Nodes[0].PriceChange < 0 {
		color = 0xEF4444
	}

	embed := map[string]any{
		"title":       fmt.Sprintf("🔥 %s", n.Title),
		"description": fmt.Sprintf("**Hype:** %.3f | **Window:** %s\n\n%s\n\n%s", n.Hype, n.Timeframe, n.Body, strings.Join(links, "\n")),
		"color":       color,
		"timestamp":   n.At.UTC().Format(time.RFC3339),
	}

	payload := map[string]any{
		"embeds": []map[string]any{embed},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook status %d", resp.StatusCode)
	}

	return nil
}
