package risk

import "strings"

// Correlations reports the pairwise return correlation between two assets,
// used to block correlated concurrent exposure.
type Correlations interface {
	Between(a, b string) float64
}

// StaticCorrelations is a symmetric lookup table of asset correlations with a
// fallback for unlisted pairs. Crypto majors move together, so the defaults
// are deliberately conservative.
type StaticCorrelations struct {
	pairs    map[string]float64
	fallback float64
}

// DefaultCorrelations returns the built-in table covering the venue's
// tradable crypto assets.
func DefaultCorrelations() *StaticCorrelations {
	c := NewStaticCorrelations(0.30)
	c.Set("BTC", "ETH", 0.85)
	c.Set("BTC", "SOL", 0.78)
	c.Set("BTC", "AVAX", 0.72)
	c.Set("BTC", "ARB", 0.68)
	c.Set("ETH", "SOL", 0.80)
	c.Set("ETH", "AVAX", 0.75)
	c.Set("ETH", "ARB", 0.82)
	c.Set("SOL", "AVAX", 0.74)
	c.Set("SOL", "ARB", 0.66)
	c.Set("AVAX", "ARB", 0.64)
	return c
}

// NewStaticCorrelations creates an empty table with the given fallback for
// pairs that were never set.
func NewStaticCorrelations(fallback float64) *StaticCorrelations {
	return &StaticCorrelations{
		pairs:    make(map[string]float64),
		fallback: fallback,
	}
}

// Set records the correlation for an unordered asset pair.
func (c *StaticCorrelations) Set(a, b string, corr float64) {
	c.pairs[pairKey(a, b)] = corr
}

// Between returns the correlation for the pair, 1.0 for identical assets,
// and the fallback for unknown pairs. Assets without a symbol (non-crypto
// markets) are treated as uncorrelated.
func (c *StaticCorrelations) Between(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if strings.EqualFold(a, b) {
		return 1.0
	}
	if corr, ok := c.pairs[pairKey(a, b)]; ok {
		return corr
	}
	return c.fallback
}

func pairKey(a, b string) string {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	if a > b {
		a, b = b, a
	}
	return a + "/" + b
}
