package hype

import (
	"sort"
	"strings"

	"github.com/elonfeng/hyperadar/pkg/token"
)

const (
	MinLimit     = 5
	MaxLimit     = 300
	DefaultLimit = 100

	DefaultChain = "solana"
)

// Weights scales each normalized component. They are not required to sum to
// 1, so hype is a relative ranking value rather than a bounded probability.
type Weights struct {
	Price  float64 `json:"price" yaml:"price"`
	Volume float64 `json:"volume" yaml:"volume"`
	Txns   float64 `json:"txns" yaml:"txns"`
	Boost  float64 `json:"boost" yaml:"boost"`
}

// DefaultWeights returns the stock weighting.
func DefaultWeights() Weights {
	return Weights{Price: 0.35, Volume: 0.3, Txns: 0.25, Boost: 0.1}
}

func (w Weights) sanitized() Weights {
	return Weights{
		Price:  nonNegative(w.Price),
		Volume: nonNegative(w.Volume),
		Txns:   nonNegative(w.Txns),
		Boost:  nonNegative(w.Boost),
	}
}

// Config is the immutable scoring configuration for one recompute.
type Config struct {
	Chain        string          `json:"chain" yaml:"chain"`
	Timeframe    token.Timeframe `json:"timeframe" yaml:"timeframe"`
	MinLiquidity float64         `json:"min_liquidity" yaml:"min_liquidity"`
	Weights      Weights         `json:"weights" yaml:"weights"`
	Query        string          `json:"query" yaml:"query"`
	Limit        int             `json:"limit" yaml:"limit"`
}

// DefaultConfig returns the configuration used when nothing is supplied.
func DefaultConfig() Config {
	return Config{
		Chain:        DefaultChain,
		Timeframe:    token.Timeframe24h,
		MinLiquidity: 10000,
		Weights:      DefaultWeights(),
		Limit:        DefaultLimit,
	}
}

// ClampLimit bounds n to [MinLimit, MaxLimit]; 0 or less means DefaultLimit.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n < MinLimit:
		return MinLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

// Scales are the data-dependent scales built over one filtered set.
type Scales struct {
	Volume LinearScale
	Txns   LinearScale
	Boost  LinearScale
}

// NewScales builds the volume, txn and boost scales for tf over records.
func NewScales(records []token.RawTokenRecord, boosts map[string]float64, tf token.Timeframe) Scales {
	vols := make([]float64, len(records))
	txns := make([]float64, len(records))
	bst := make([]float64, len(records))
	for i, r := range records {
		vols[i] = r.Volume.At(tf)
		txns[i] = r.Txns(tf)
		bst[i] = boosts[r.Address]
	}
	return Scales{
		Volume: NewLinearScale(vols),
		Txns:   NewLinearScale(txns),
		Boost:  NewLinearScale(bst),
	}
}

// Hype computes the weighted composite for one record. It depends only on its
// arguments.
func Hype(r token.RawTokenRecord, boost float64, sc Scales, tf token.Timeframe, w Weights) float64 {
	w = w.sanitized()
	return w.Price*PriceScale.Map(r.PriceChange.At(tf)) +
		w.Volume*sc.Volume.Map(r.Volume.At(tf)) +
		w.Txns*sc.Txns.Map(r.Txns(tf)) +
		w.Boost*sc.Boost.Map(boost)
}

// Score turns a snapshot into an ordered, bounded node list. It never fails:
// an empty or fully filtered snapshot yields an empty list.
func Score(snap token.Snapshot, cfg Config) []token.Node {
	tf := cfg.Timeframe
	if tf == "" {
		tf = token.Timeframe24h
	}
	chain := cfg.Chain
	if chain == "" {
		chain = DefaultChain
	}

	filtered := filterRecords(snap.Records, chain, cfg.MinLiquidity)
	scales := NewScales(filtered, snap.Boosts, tf)
	query := strings.ToLower(strings.TrimSpace(cfg.Query))

	nodes := make([]token.Node, 0, len(filtered))
	for _, r := range filtered {
		if query != "" && !matchesQuery(r, query) {
			continue
		}
		nodes = append(nodes, buildNode(r, snap, scales, tf, cfg.Weights))
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Hype > nodes[j].Hype
	})

	if limit := ClampLimit(cfg.Limit); len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes
}

// filterRecords keeps records on chain with enough liquidity. Scales are built
// over this set, before the text query narrows it further.
func filterRecords(records []token.RawTokenRecord, chain string, minLiquidity float64) []token.RawTokenRecord {
	seen := make(map[string]bool, len(records))
	out := make([]token.RawTokenRecord, 0, len(records))
	for _, r := range records {
		if r.Address == "" || seen[r.Address] {
			continue
		}
		if !strings.EqualFold(r.Chain, chain) {
			continue
		}
		if r.Liquidity.Float() < minLiquidity {
			continue
		}
		seen[r.Address] = true
		out = append(out, r)
	}
	return out
}

func matchesQuery(r token.RawTokenRecord, query string) bool {
	return strings.Contains(strings.ToLower(r.Name), query) ||
		strings.Contains(strings.ToLower(r.Symbol), query)
}

func buildNode(r token.RawTokenRecord, snap token.Snapshot, sc Scales, tf token.Timeframe, w Weights) token.Node {
	boost := snap.Boosts[r.Address]

	icon := r.IconURL
	if i, ok := snap.Icons[r.Address]; ok && i != "" {
		icon = i
	}

	return token.Node{
		ID:                   r.Address,
		Name:                 r.Name,
		Symbol:               r.Symbol,
		Icon:                 icon,
		URL:                  r.URL,
		Hype:                 finite(Hype(r, boost, sc, tf, w)),
		PriceChange:          r.PriceChange.At(tf),
		ReferencePriceChange: r.PriceChange.At(token.ReferenceTimeframe),
		Volume:               r.Volume.At(tf),
		Txns:                 r.Txns(tf),
		Liquidity:            r.Liquidity.Float(),
		PriceUSD:             r.PriceUSD.Float(),
		Valuation:            r.Valuation.Float(),
	}
}

func nonNegative(v float64) float64 {
	v = finite(v)
	if v < 0 {
		return 0
	}
	return v
}
