package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/elonfeng/hyperadar/pkg/token"
)

const (
	DefaultBaseURL = "https://api.dexscreener.com"

	// BatchSize is the most addresses the pairs endpoint accepts per call.
	BatchSize = 30

	defaultMaxTokens = 300
)

// Options configures the DexScreener aggregator.
type Options struct {
	BaseURL     string
	Chain       string
	MaxTokens   int
	RPS         float64
	Burst       int
	Concurrency int
	Timeout     time.Duration
	Recorder    Recorder
}

// DexScreener merges boosted and recently profiled tokens with their pair
// data into one snapshot per Fetch.
type DexScreener struct {
	client   *http.Client
	baseURL  string
	chain    string
	max      int
	limiter  *rate.Limiter
	sem      int
	recorder Recorder
	seq      atomic.Uint64
}

// NewDexScreener creates the aggregator. Zero options take defaults.
func NewDexScreener(opts Options) *DexScreener {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Chain == "" {
		opts.Chain = "solana"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.RPS <= 0 {
		opts.RPS = 4
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &DexScreener{
		client:   &http.Client{Timeout: opts.Timeout},
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		chain:    opts.Chain,
		max:      opts.MaxTokens,
		limiter:  rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		sem:      opts.Concurrency,
		recorder: opts.Recorder,
	}
}

func (d *DexScreener) Name() string { return "dexscreener" }

type listing struct {
	ChainID      string       `json:"chainId"`
	TokenAddress string       `json:"tokenAddress"`
	Icon         string       `json:"icon"`
	Amount       token.Number `json:"amount"`
	TotalAmount  token.Number `json:"totalAmount"`
}

type txnCount struct {
	Buys  token.Number `json:"buys"`
	Sells token.Number `json:"sells"`
}

type pair struct {
	ChainID   string `json:"chainId"`
	URL       string `json:"url"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD token.Number `json:"priceUsd"`
	Txns     struct {
		M5  txnCount `json:"m5"`
		H1  txnCount `json:"h1"`
		H6  txnCount `json:"h6"`
		H24 txnCount `json:"h24"`
	} `json:"txns"`
	Volume      token.Windowed `json:"volume"`
	PriceChange token.Windowed `json:"priceChange"`
	Liquidity   *struct {
		USD token.Number `json:"usd"`
	} `json:"liquidity"`
	FDV       token.Number `json:"fdv"`
	MarketCap token.Number `json:"marketCap"`
	Info      *struct {
		ImageURL string `json:"imageUrl"`
	} `json:"info"`
}

// Fetch pulls boosts and profiles, then resolves pairs for every candidate
// address. It fails only when nothing usable came back.
func (d *DexScreener) Fetch(ctx context.Context) (token.Snapshot, error) {
	var boosts, profiles []listing
	var boostErr, profileErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		boostErr = d.getJSON(ctx, "boosts", "/token-boosts/top/v1", &boosts)
	}()
	go func() {
		defer wg.Done()
		profileErr = d.getJSON(ctx, "profiles", "/token-profiles/latest/v1", &profiles)
	}()
	wg.Wait()
	if boostErr != nil && profileErr != nil {
		return token.Snapshot{}, errors.Join(boostErr, profileErr)
	}

	snap := token.Snapshot{
		FetchedAt: time.Now().UTC(),
		Icons:     make(map[string]string),
	}

	var boostRecords []token.BoostRecord
	var addrs []string
	seen := make(map[string]bool)
	add := func(l listing) {
		if !strings.EqualFold(l.ChainID, d.chain) || l.TokenAddress == "" {
			return
		}
		if l.Icon != "" && snap.Icons[l.TokenAddress] == "" {
			snap.Icons[l.TokenAddress] = l.Icon
		}
		if !seen[l.TokenAddress] && len(addrs) < d.max {
			seen[l.TokenAddress] = true
			addrs = append(addrs, l.TokenAddress)
		}
	}
	for _, b := range boosts {
		add(b)
		if strings.EqualFold(b.ChainID, d.chain) {
			amount := b.TotalAmount
			if amount == 0 {
				amount = b.Amount
			}
			boostRecords = append(boostRecords, token.BoostRecord{Address: b.TokenAddress, Amount: amount})
		}
	}
	for _, p := range profiles {
		add(p)
	}
	snap.Boosts = token.BoostMap(boostRecords)

	records, err := d.fetchPairs(ctx, addrs)
	if err != nil && len(records) == 0 && len(addrs) > 0 {
		return token.Snapshot{}, err
	}
	snap.Records = records
	snap.Seq = d.seq.Add(1)
	return snap, nil
}

// fetchPairs resolves addresses in batches and keeps the deepest pool per
// base token, in first-seen address order.
func (d *DexScreener) fetchPairs(ctx context.Context, addrs []string) ([]token.RawTokenRecord, error) {
	var batches [][]string
	for start := 0; start < len(addrs); start += BatchSize {
		batches = append(batches, addrs[start:min(start+BatchSize, len(addrs))])
	}

	results := make([][]pair, len(batches))
	errs := make([]error, len(batches))
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.sem)
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			path := fmt.Sprintf("/tokens/v1/%s/%s", d.chain, strings.Join(batch, ","))
			errs[i] = d.getJSON(ctx, "pairs", path, &results[i])
		}(i, batch)
	}
	wg.Wait()

	wanted := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		wanted[a] = true
	}
	best := make(map[string]token.RawTokenRecord)
	for _, pairs := range results {
		for _, p := range pairs {
			addr := p.BaseToken.Address
			if !wanted[addr] {
				continue
			}
			rec := d.toRecord(p)
			if cur, ok := best[addr]; ok && cur.Liquidity >= rec.Liquidity {
				continue
			}
			best[addr] = rec
		}
	}

	records := make([]token.RawTokenRecord, 0, len(best))
	for _, a := range addrs {
		if rec, ok := best[a]; ok {
			records = append(records, rec)
		}
	}
	return records, errors.Join(errs...)
}

func (d *DexScreener) toRecord(p pair) token.RawTokenRecord {
	rec := token.RawTokenRecord{
		Chain:       d.chain,
		Address:     p.BaseToken.Address,
		Name:        p.BaseToken.Name,
		Symbol:      p.BaseToken.Symbol,
		Volume:      p.Volume,
		PriceChange: p.PriceChange,
		PriceUSD:    p.PriceUSD,
		Valuation:   p.FDV,
		URL:         p.URL,
		Buys: token.Windowed{
			M5: p.Txns.M5.Buys, H1: p.Txns.H1.Buys, H6: p.Txns.H6.Buys, H24: p.Txns.H24.Buys,
		},
		Sells: token.Windowed{
			M5: p.Txns.M5.Sells, H1: p.Txns.H1.Sells, H6: p.Txns.H6.Sells, H24: p.Txns.H24.Sells,
		},
	}
	if rec.Valuation <= 0 {
		rec.Valuation = p.MarketCap
	}
	if p.Liquidity != nil {
		rec.Liquidity = p.Liquidity.USD
	}
	if p.Info != nil {
		rec.IconURL = p.Info.ImageURL
	}
	return rec
}

func (d *DexScreener) getJSON(ctx context.Context, endpoint, path string, out any) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "hyperadar/1.0")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		d.recorder.ObserveRequest(endpoint, "error", time.Since(start))
		return fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	d.recorder.ObserveRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
