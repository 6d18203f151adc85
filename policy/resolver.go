package policy

// Resolver holds a set of groups and resolves a request target to the
// best-matching group and its policy. HTTP targets are URL paths; gRPC
// targets are full method names ("/pkg.Service/Method").
type Resolver struct {
	groups []*GroupBuilder
}

// NewResolver creates a Resolver from the supplied group builders.
func NewResolver(groups ...*GroupBuilder) *Resolver {
	return &Resolver{groups: groups}
}

// Resolve finds the best-matching group for target.
//
// Priority rules:
//   - Exact matches beat prefix matches, which beat regex matches.
//   - Among matches of the same kind the longer match wins.
//   - When two matches have equal kind and length the group that was
//     registered first wins.
//
// If no group matches, ok is false. A nil Resolver never matches.
func (res *Resolver) Resolve(target string) (groupName string, pol *Policy, ok bool) {
	if res == nil {
		return "", nil, false
	}

	bestKind := matchKind(-1)
	bestLen := -1

	for _, g := range res.groups {
		for _, r := range g.rules {
			matched, mLen := r.match(target)
			if !matched {
				continue
			}
			better := bestKind < 0 ||
				r.kind < bestKind ||
				(r.kind == bestKind && mLen > bestLen)
			if better {
				bestKind = r.kind
				bestLen = mLen
				groupName = g.name
				pol = g.policy
				ok = true
			}
		}
	}
	return groupName, pol, ok
}
