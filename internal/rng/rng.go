// Package rng provides the injectable random source used by the check
// sampler and random-review picks, so tests can pin the draw.
package rng

import (
	"math/rand"
	"sync"
	"time"
)

type Source interface {
	// Float64 returns a uniform draw in [0,1).
	Float64() float64
	// Intn returns a uniform draw in [0,n).
	Intn(n int) int
}

type locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a time-seeded source safe for concurrent use.
func New() Source {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a deterministic source for a fixed seed.
func NewSeeded(seed int64) Source {
	return &locked{r: rand.New(rand.NewSource(seed))}
}

func (l *locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *locked) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Fixed replays a canned sequence of Float64 draws; Intn always picks 0
// once the sequence is exhausted. Test use only.
type Fixed struct {
	mu     sync.Mutex
	Values []float64
}

func (f *Fixed) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Values) == 0 {
		return 0
	}
	v := f.Values[0]
	f.Values = f.Values[1:]
	return v
}

func (f *Fixed) Intn(n int) int {
	v := f.Float64()
	idx := int(v * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return idx
}
