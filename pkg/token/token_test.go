package token

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber_UnmarshalLenient(t *testing.T) {
	cases := map[string]float64{
		`12.5`:         12.5,
		`"0.00012345"`: 0.00012345,
		`"  42 "`:      42,
		`null`:         0,
		`"abc"`:        0,
		`""`:           0,
		`true`:         0,
		`{"x":1}`:      0,
		`-3`:           -3,
	}

	for input, want := range cases {
		var n Number
		require.NoError(t, json.Unmarshal([]byte(input), &n), input)
		assert.InDelta(t, want, n.Float(), 1e-12, input)
	}
}

func TestNumber_InsideStruct(t *testing.T) {
	var rec RawTokenRecord
	err := json.Unmarshal([]byte(`{
		"address": "abc",
		"liquidity_usd": "15000.5",
		"volume": {"m5": 1, "h1": "2", "h6": null, "h24": "oops"},
		"price_usd": "0.5"
	}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, 15000.5, rec.Liquidity.Float())
	assert.Equal(t, 1.0, rec.Volume.At(Timeframe5m))
	assert.Equal(t, 2.0, rec.Volume.At(Timeframe1h))
	assert.Equal(t, 0.0, rec.Volume.At(Timeframe6h))
	assert.Equal(t, 0.0, rec.Volume.At(Timeframe24h))
	assert.Equal(t, 0.5, rec.PriceUSD.Float())
}

func TestParseTimeframe(t *testing.T) {
	for in, want := range map[string]Timeframe{
		"m5": Timeframe5m, "5m": Timeframe5m,
		"H1": Timeframe1h, "6h": Timeframe6h,
		"h24": Timeframe24h, "": Timeframe24h,
	} {
		got, err := ParseTimeframe(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTimeframe("1w")
	assert.Error(t, err)
}

func TestRawTokenRecord_Txns(t *testing.T) {
	rec := RawTokenRecord{
		Buys:  Windowed{H1: 10, H24: 100},
		Sells: Windowed{H1: 5, H24: 40},
	}
	assert.Equal(t, 15.0, rec.Txns(Timeframe1h))
	assert.Equal(t, 140.0, rec.Txns(Timeframe24h))
	assert.Equal(t, 0.0, rec.Txns(Timeframe("w1")))
}

func TestBoostMap_SumsRepeats(t *testing.T) {
	m := BoostMap([]BoostRecord{
		{Address: "a", Amount: 10},
		{Address: "a", Amount: 5},
		{Address: "b", Amount: 1},
		{Address: "", Amount: 99},
	})
	assert.Equal(t, map[string]float64{"a": 15, "b": 1}, m)
}
