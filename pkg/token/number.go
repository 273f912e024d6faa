package token

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Number is a float64 that tolerates what upstream APIs actually send:
// JSON numbers, numeric strings ("0.0001234"), null, or junk. Anything that
// does not parse, and any NaN or infinity, reads as 0.
type Number float64

// Float returns n as a finite float64.
func (n Number) Float() float64 {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*n = ParseNumber(s)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	*n = Number(f).finite()
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Float())
}

func (n Number) finite() Number {
	return Number(n.Float())
}

// ParseNumber parses a decimal string, returning 0 for anything malformed.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return Number(f).finite()
}
