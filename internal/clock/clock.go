// Package clock abstracts the wall clock so audit timestamps stay
// reproducible in tests. Only cmd/ should construct a Real clock.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// Fixed always returns T.
type Fixed struct {
	T time.Time
}

func (c Fixed) Now() time.Time { return c.T }

// Func adapts a function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// Ticker returns start, then start+step, start+2·step and so on. Safe for
// concurrent use.
type Ticker struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func NewTicker(start time.Time, step time.Duration) *Ticker {
	return &Ticker{next: start, step: step}
}

func (t *Ticker) Now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.next
	t.next = t.next.Add(t.step)
	return now
}

var (
	_ Clock = Real{}
	_ Clock = Fixed{}
	_ Clock = Func(nil)
	_ Clock = (*Ticker)(nil)
)
