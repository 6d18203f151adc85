package policy

import (
	"testing"
	"time"
)

func TestResolve_ExactMatch(t *testing.T) {
	r := NewResolver(
		Group("health").
			Exact("/healthz").
			Policy(Policy{Skip: true}),
	)

	name, pol, ok := r.Resolve("/healthz")
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "health" {
		t.Fatalf("got group %q, want %q", name, "health")
	}
	if !pol.Skip {
		t.Fatal("expected Skip to be true")
	}
}

func TestResolve_PrefixMatch(t *testing.T) {
	r := NewResolver(
		Group("uploads").
			Prefix("/api/uploads/").
			Policy(Policy{NoBody: true}),
	)

	name, pol, ok := r.Resolve("/api/uploads/42")
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "uploads" {
		t.Fatalf("got group %q, want %q", name, "uploads")
	}
	if !pol.NoBody {
		t.Fatal("expected NoBody to be true")
	}
}

func TestResolve_RegexMatch(t *testing.T) {
	r := NewResolver(
		Group("grpc-health").
			Regex(`/grpc\.health\.`).
			Policy(Policy{}),
	)

	_, _, ok := r.Resolve("/grpc.health.v1.Health/Check")
	if !ok {
		t.Fatal("expected a regex match")
	}
}

func TestResolve_NoMatch(t *testing.T) {
	r := NewResolver(
		Group("health").Exact("/healthz").Policy(Policy{}),
	)

	_, _, ok := r.Resolve("/api/users")
	if ok {
		t.Fatal("expected no match")
	}
}

func TestResolve_NilResolver(t *testing.T) {
	var r *Resolver
	if _, _, ok := r.Resolve("/anything"); ok {
		t.Fatal("nil resolver must not match")
	}
}

func TestResolve_ExactBeatsPrefix(t *testing.T) {
	r := NewResolver(
		Group("prefix-group").
			Prefix("/api/").
			Policy(Policy{BodyLimit: 10}),
		Group("exact-group").
			Exact("/api/login").
			Policy(Policy{BodyLimit: 20}),
	)

	name, pol, ok := r.Resolve("/api/login")
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "exact-group" {
		t.Fatalf("exact should beat prefix: got %q", name)
	}
	if pol.BodyLimit != 20 {
		t.Fatalf("got body limit %d, want 20", pol.BodyLimit)
	}
}

func TestResolve_PrefixBeatsRegex(t *testing.T) {
	r := NewResolver(
		Group("regex-group").
			Regex(`^/api/`).
			Policy(Policy{}),
		Group("prefix-group").
			Prefix("/api/").
			Policy(Policy{}),
	)

	name, _, ok := r.Resolve("/api/list")
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "prefix-group" {
		t.Fatalf("prefix should beat regex: got %q", name)
	}
}

func TestResolve_LongerPrefixWins(t *testing.T) {
	r := NewResolver(
		Group("short").Prefix("/api/").Policy(Policy{}),
		Group("long").Prefix("/api/admin/").Policy(Policy{}),
	)

	name, _, ok := r.Resolve("/api/admin/users")
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "long" {
		t.Fatalf("longer prefix should win: got %q", name)
	}
}

func TestResolve_StableFallback(t *testing.T) {
	// Two exact matches of equal length: the first registered group wins.
	r := NewResolver(
		Group("first").Exact("/metrics").Policy(Policy{BodyLimit: 1}),
		Group("second").Exact("/metrics").Policy(Policy{BodyLimit: 2}),
	)

	name, pol, ok := r.Resolve("/metrics")
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "first" {
		t.Fatalf("first-registered group should win: got %q", name)
	}
	if pol.BodyLimit != 1 {
		t.Fatalf("got body limit %d, want 1", pol.BodyLimit)
	}
}

func TestResolve_MultipleRulesInGroup(t *testing.T) {
	r := NewResolver(
		Group("mixed").
			Exact("/ready").
			Prefix("/static/").
			Regex(`\.ico$`).
			Policy(Policy{Skip: true}),
	)

	for _, target := range []string{"/ready", "/static/app.js", "/favicon.ico"} {
		name, _, ok := r.Resolve(target)
		if !ok {
			t.Fatalf("expected match for %s", target)
		}
		if name != "mixed" {
			t.Fatalf("got group %q for %s, want %q", name, target, "mixed")
		}
	}
}

func TestResolve_SamplePolicy(t *testing.T) {
	r := NewResolver(
		Group("noisy").
			Prefix("/poll").
			Policy(Policy{
				Sample: &SampleRule{Rate: 100, Window: time.Minute},
			}),
	)

	_, pol, ok := r.Resolve("/poll/events")
	if !ok {
		t.Fatal("expected a match")
	}
	if pol.Sample == nil {
		t.Fatal("expected Sample to be set")
	}
	if pol.Sample.Rate != 100 {
		t.Fatalf("got rate %d, want 100", pol.Sample.Rate)
	}
}

func TestEffectiveBodyLimit(t *testing.T) {
	tests := []struct {
		name string
		pol  *Policy
		want int
	}{
		{"nil policy", nil, 64},
		{"no override", &Policy{}, 64},
		{"override", &Policy{BodyLimit: 8}, 8},
		{"no body", &Policy{NoBody: true, BodyLimit: 8}, 0},
	}
	for _, tt := range tests {
		if got := tt.pol.EffectiveBodyLimit(64); got != tt.want {
			t.Fatalf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}
