package token

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe selects which upstream window feeds volume, txns and price change.
type Timeframe string

const (
	Timeframe5m  Timeframe = "m5"
	Timeframe1h  Timeframe = "h1"
	Timeframe6h  Timeframe = "h6"
	Timeframe24h Timeframe = "h24"
)

// ReferenceTimeframe is the fixed window reported next to the selected one.
const ReferenceTimeframe = Timeframe24h

// AllTimeframes returns every supported timeframe, shortest first.
func AllTimeframes() []Timeframe {
	return []Timeframe{Timeframe5m, Timeframe1h, Timeframe6h, Timeframe24h}
}

// ParseTimeframe accepts the upstream keys (m5, h1, h6, h24) and the common
// spellings 5m, 1h, 6h, 24h.
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m5", "5m":
		return Timeframe5m, nil
	case "h1", "1h":
		return Timeframe1h, nil
	case "h6", "6h":
		return Timeframe6h, nil
	case "h24", "24h", "":
		return Timeframe24h, nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// Windowed holds one value per timeframe.
type Windowed struct {
	M5  Number `json:"m5"`
	H1  Number `json:"h1"`
	H6  Number `json:"h6"`
	H24 Number `json:"h24"`
}

// At returns the value for tf. Unknown timeframes read as 0.
func (w Windowed) At(tf Timeframe) float64 {
	switch tf {
	case Timeframe5m:
		return w.M5.Float()
	case Timeframe1h:
		return w.H1.Float()
	case Timeframe6h:
		return w.H6.Float()
	case Timeframe24h:
		return w.H24.Float()
	}
	return 0
}

// RawTokenRecord is the best-liquidity upstream record for one token address.
type RawTokenRecord struct {
	Chain       string   `json:"chain"`
	Address     string   `json:"address"`
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Liquidity   Number   `json:"liquidity_usd"`
	Volume      Windowed `json:"volume"`
	Buys        Windowed `json:"buys"`
	Sells       Windowed `json:"sells"`
	PriceChange Windowed `json:"price_change"`
	PriceUSD    Number   `json:"price_usd"`
	Valuation   Number   `json:"valuation"`
	IconURL     string   `json:"icon_url,omitempty"`
	URL         string   `json:"url"`
}

// Txns returns buys plus sells for tf.
func (r RawTokenRecord) Txns(tf Timeframe) float64 {
	return r.Buys.At(tf) + r.Sells.At(tf)
}

// BoostRecord is a promotional signal for one token.
type BoostRecord struct {
	Address string `json:"address"`
	Amount  Number `json:"amount"`
}

// Snapshot is one deduplicated upstream refresh.
type Snapshot struct {
	Seq       uint64             `json:"seq"`
	FetchedAt time.Time          `json:"fetched_at"`
	Records   []RawTokenRecord   `json:"records"`
	Boosts    map[string]float64 `json:"boosts"`
	Icons     map[string]string  `json:"icons"`
}

// BoostMap folds boost records into an address-keyed map, summing repeats.
func BoostMap(boosts []BoostRecord) map[string]float64 {
	out := make(map[string]float64, len(boosts))
	for _, b := range boosts {
		if b.Address == "" {
			continue
		}
		out[b.Address] += b.Amount.Float()
	}
	return out
}

// Node is a scored token ready for layout. Nodes are never mutated after
// scoring; a new list is built on every recompute.
type Node struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	Symbol               string  `json:"symbol"`
	Icon                 string  `json:"icon,omitempty"`
	URL                  string  `json:"url"`
	Hype                 float64 `json:"hype"`
	PriceChange          float64 `json:"price_change"`
	ReferencePriceChange float64 `json:"reference_price_change"`
	Volume               float64 `json:"volume"`
	Txns                 float64 `json:"txns"`
	Liquidity            float64 `json:"liquidity"`
	PriceUSD             float64 `json:"price_usd"`
	Valuation            float64 `json:"valuation"`
}
