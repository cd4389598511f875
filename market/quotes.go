package market

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrDateNotFound is returned when a security has no bar covering the
// requested date.
var ErrDateNotFound = errors.New("no quote for date")

// Bar is one close-of-period price record.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// QuoteSource supplies historical close prices and corporate-action weights.
// Implementations must be safe for concurrent readers.
type QuoteSource interface {
	// ClosePrice returns the close of the bar dated exactly at.
	ClosePrice(sec Security, at time.Time, ktype KType) (float64, error)

	// LastClose returns the most recent bar at or before through.
	LastClose(sec Security, through time.Time, ktype KType) (time.Time, float64, error)

	// WeightsBetween returns corporate actions with dates in (after, through],
	// in chronological order.
	WeightsBetween(sec Security, after, through time.Time) ([]Weight, error)
}

// MemoryQuotes is an in-memory QuoteSource backed by sorted bar slices.
// Bars are kept per (security, ktype); weights per security.
type MemoryQuotes struct {
	mu      sync.RWMutex
	bars    map[string][]Bar
	weights map[string][]Weight
}

func NewMemoryQuotes() *MemoryQuotes {
	return &MemoryQuotes{
		bars:    make(map[string][]Bar),
		weights: make(map[string][]Weight),
	}
}

func barKey(sec Security, ktype KType) string {
	return sec.String() + "/" + string(ktype)
}

// AddBars merges bars into the store, keeping the series sorted by date.
func (q *MemoryQuotes) AddBars(sec Security, ktype KType, bars ...Bar) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := barKey(sec, ktype)
	s := append(q.bars[key], bars...)
	sort.Slice(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
	q.bars[key] = s
}

// AddWeights merges corporate-action records, keeping them sorted by date.
func (q *MemoryQuotes) AddWeights(sec Security, ws ...Weight) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := sec.String()
	s := append(q.weights[key], ws...)
	sort.Slice(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
	q.weights[key] = s
}

func (q *MemoryQuotes) ClosePrice(sec Security, at time.Time, ktype KType) (float64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	s := q.bars[barKey(sec, ktype)]
	i := sort.Search(len(s), func(i int) bool { return !s[i].Date.Before(at) })
	if i >= len(s) || !s[i].Date.Equal(at) {
		return 0, fmt.Errorf("%s at %s: %w", sec, at.Format(time.DateOnly), ErrDateNotFound)
	}
	return s[i].Close, nil
}

func (q *MemoryQuotes) LastClose(sec Security, through time.Time, ktype KType) (time.Time, float64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	s := q.bars[barKey(sec, ktype)]
	i := sort.Search(len(s), func(i int) bool { return s[i].Date.After(through) })
	if i == 0 {
		return time.Time{}, 0, fmt.Errorf("%s through %s: %w", sec, through.Format(time.DateOnly), ErrDateNotFound)
	}
	b := s[i-1]
	return b.Date, b.Close, nil
}

func (q *MemoryQuotes) WeightsBetween(sec Security, after, through time.Time) ([]Weight, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []Weight
	for _, w := range q.weights[sec.String()] {
		if w.Date.After(after) && !w.Date.After(through) {
			out = append(out, w)
		}
	}
	return out, nil
}
