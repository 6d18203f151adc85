// Package ratelimit provides token-bucket limiters backed by
// golang.org/x/time/rate. The middleware uses them to sample how many
// exchanges reach the listeners.
package ratelimit

import (
	"sync"

	"github.com/Keksclan/goRawrListener/policy"
	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket limiter that decides whether an exchange
// should be reported.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a Limiter that permits rps events per second with the
// given burst size.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// FromRule builds a Limiter allowing rule.Rate events per rule.Window, with a
// burst equal to the rate.
func FromRule(rule *policy.SampleRule) *Limiter {
	return NewLimiter(float64(rule.Rate)/rule.Window.Seconds(), rule.Rate)
}

// Allow reports whether a single event may proceed.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}

// Groups lazily creates one limiter per policy group and falls back to an
// optional global limiter for targets without a group sample rule.
type Groups struct {
	global *Limiter

	mu     sync.Mutex
	groups map[string]*Limiter
}

// NewGroups creates a Groups set. global may be nil, in which case exchanges
// without a group sample rule are always allowed.
func NewGroups(global *Limiter) *Groups {
	return &Groups{global: global, groups: make(map[string]*Limiter)}
}

// Allow reports whether an exchange in group (with the group's policy) may be
// reported.
func (g *Groups) Allow(group string, pol *policy.Policy) bool {
	if pol != nil && pol.Sample != nil {
		return g.limiter(group, pol.Sample).Allow()
	}
	if g.global != nil {
		return g.global.Allow()
	}
	return true
}

func (g *Groups) limiter(group string, rule *policy.SampleRule) *Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.groups[group]; ok {
		return l
	}
	l := FromRule(rule)
	g.groups[group] = l
	return l
}
