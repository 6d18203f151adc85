// Package policy groups request targets (URL paths or gRPC full method names)
// into named groups and attaches a listener Policy to each group.
package policy

import (
	"regexp"
	"time"
)

// SampleRule caps how many exchanges of a group are reported to listeners.
type SampleRule struct {
	// Rate is the maximum number of exchanges reported within Window.
	Rate int
	// Window is the time window for the rate.
	Window time.Duration
}

// Policy holds the listener configuration that applies to a matched group.
type Policy struct {
	// Skip bypasses every listener for the group. The request is still
	// served.
	Skip bool

	// NoBody disables request and response body capture.
	NoBody bool

	// BodyLimit overrides the middleware-wide capture limit when > 0.
	BodyLimit int

	// Sample limits how often exchanges of this group reach the listeners.
	Sample *SampleRule
}

// EffectiveBodyLimit returns the number of body bytes to capture under p,
// falling back to def when p does not override it. A nil policy yields def.
func (p *Policy) EffectiveBodyLimit(def int) int {
	switch {
	case p == nil:
		return def
	case p.NoBody:
		return 0
	case p.BodyLimit > 0:
		return p.BodyLimit
	default:
		return def
	}
}

// matchKind distinguishes the three matching strategies.
type matchKind int

const (
	kindExact  matchKind = iota // highest priority
	kindPrefix                  // medium priority
	kindRegex                   // lowest priority
)

// rule is a single matching rule inside a group.
type rule struct {
	kind    matchKind
	pattern string
	re      *regexp.Regexp
}

// GroupBuilder constructs a target group with one or more matching rules and
// a policy.
type GroupBuilder struct {
	name   string
	rules  []rule
	policy *Policy
}

// Group starts building a new group with the given name.
func Group(name string) *GroupBuilder {
	return &GroupBuilder{name: name}
}

// Exact adds an exact-match rule for pattern.
func (g *GroupBuilder) Exact(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindExact, pattern: pattern})
	return g
}

// Prefix adds a prefix-match rule for pattern.
func (g *GroupBuilder) Prefix(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindPrefix, pattern: pattern})
	return g
}

// Regex adds a regex-match rule for pattern.
// The pattern is compiled immediately; an invalid regex will panic.
func (g *GroupBuilder) Regex(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindRegex, pattern: pattern, re: regexp.MustCompile(pattern)})
	return g
}

// Policy attaches a Policy to the group and returns the finished builder.
func (g *GroupBuilder) Policy(p Policy) *GroupBuilder {
	g.policy = &p
	return g
}

// Name returns the group name.
func (g *GroupBuilder) Name() string { return g.name }
