package trend

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/hyperadar/pkg/alert"
	"github.com/elonfeng/hyperadar/pkg/token"
)

func ranked(ids ...string) []token.Node {
	nodes := make([]token.Node, len(ids))
	for i, id := range ids {
		nodes[i] = token.Node{ID: id, Symbol: id, Hype: 1 - float64(i)*0.01}
	}
	return nodes
}

func filler(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("f%02d", i)
	}
	return ids
}

func newTestDetector(now *time.Time) *Detector {
	d := NewDetector(Options{MinHype: 0.5, MinRankRise: 3, Cooldown: time.Hour})
	d.now = func() time.Time { return *now }
	return d
}

func TestDetect_FirstPassIsBaseline(t *testing.T) {
	now := time.Unix(0, 0)
	d := newTestDetector(&now)
	assert.Empty(t, d.Detect(ranked("a", "b", "c")))
}

func TestDetect_EntrantsAndClimbers(t *testing.T) {
	now := time.Unix(0, 0)
	d := newTestDetector(&now)
	d.Detect(ranked(append(filler(5), "climber")...))

	hot := d.Detect(ranked(append([]string{"climber", "fresh"}, filler(5)...)...))
	require.Len(t, hot, 2)
	assert.Equal(t, "climber", hot[0].Node.ID)
	assert.Equal(t, 6, hot[0].PrevRank)
	assert.Equal(t, 1, hot[0].Rank)
	assert.False(t, hot[0].Entered())
	assert.Equal(t, "fresh", hot[1].Node.ID)
	assert.True(t, hot[1].Entered())
}

func TestDetect_CooldownAndThreshold(t *testing.T) {
	now := time.Unix(0, 0)
	d := newTestDetector(&now)
	d.Detect(nil)

	assert.Len(t, d.Detect(ranked("x")), 1)
	d.Detect(nil)
	assert.Empty(t, d.Detect(ranked("x")), "still cooling down")

	now = now.Add(2 * time.Hour)
	d.Detect(nil)
	assert.Len(t, d.Detect(ranked("x")), 1)

	d.Detect(nil)
	cold := []token.Node{{ID: "cold", Hype: 0.1}}
	assert.Empty(t, d.Detect(cold))
}

func TestNotification(t *testing.T) {
	assert.Nil(t, Notification(nil, token.Timeframe1h))

	n := Notification([]Hot{
		{Node: token.Node{ID: "a", Symbol: "AAA", Hype: 0.9}, Rank: 1, PrevRank: 9, HypeDelta: 0.2},
		{Node: token.Node{ID: "b", Symbol: "BBB"}, Rank: 2},
	}, token.Timeframe1h)
	assert.Equal(t, alert.KindHot, n.Kind)
	assert.Equal(t, "$AAA and 1 more heating up", n.Title)
	assert.Contains(t, n.Body, "#9 → #1")
	assert.Contains(t, n.Body, "BBB (new")
	assert.Len(t, n.Nodes, 2)
}
