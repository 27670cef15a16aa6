package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

// DefaultCutoff is the minimum similarity a fuzzy match must reach.
const DefaultCutoff = 0.6

var (
	ErrMissingColumns = errors.New("price list must contain 'item' and 'price' columns")
	ErrDuplicateItem  = errors.New("duplicate item in price list")
	ErrEmptyCatalog   = errors.New("price list has no items")
)

// Catalog is an immutable item-name to unit-price mapping. Names are
// lowercased and trimmed.
type Catalog struct {
	prices map[string]decimal.Decimal
	keys   []string
}

// Entry is a single priced item.
type Entry struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// New builds a catalog from entries, rejecting duplicate normalized names.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{prices: make(map[string]decimal.Decimal, len(entries))}
	for _, e := range entries {
		name := Normalize(e.Name)
		if name == "" {
			continue
		}
		if _, exists := c.prices[name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateItem, name)
		}
		c.prices[name] = e.Price
		c.keys = append(c.keys, name)
	}
	if len(c.keys) == 0 {
		return nil, ErrEmptyCatalog
	}
	sort.Strings(c.keys)
	return c, nil
}

// Normalize lowercases and trims a name or phrase.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Price returns the price of an exact (normalized) item name.
func (c *Catalog) Price(name string) (decimal.Decimal, bool) {
	if c == nil {
		return decimal.Zero, false
	}
	p, ok := c.prices[Normalize(name)]
	return p, ok
}

// Entries returns all items sorted by name.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, Entry{Name: k, Price: c.prices[k]})
	}
	return out
}

// Match resolves a spoken phrase to the closest catalog item. An exact key
// wins outright; otherwise the key with the highest edit similarity at or
// above cutoff is returned, ties broken by the lexicographically smallest key.
func (c *Catalog) Match(phrase string, cutoff float64) (string, decimal.Decimal, bool) {
	if c == nil {
		return "", decimal.Zero, false
	}
	q := Normalize(phrase)
	if q == "" {
		return "", decimal.Zero, false
	}
	if p, ok := c.prices[q]; ok {
		return q, p, true
	}

	best := ""
	bestScore := -1.0
	for _, k := range c.keys {
		score := Similarity(q, k)
		// keys are sorted, so strict > keeps the smallest key on ties
		if score > bestScore {
			best, bestScore = k, score
		}
	}
	if best == "" || bestScore < cutoff {
		return "", decimal.Zero, false
	}
	return best, c.prices[best], true
}

// Similarity returns 1 - distance/maxlen over runes, in [0, 1].
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// Store holds the current catalog. Publish replaces it atomically.
type Store struct {
	current atomic.Pointer[Catalog]
}

func (s *Store) Load() *Catalog {
	return s.current.Load()
}

func (s *Store) Publish(c *Catalog) {
	s.current.Store(c)
}

func (s *Store) Loaded() bool {
	return s.current.Load() != nil
}
