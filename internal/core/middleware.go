package core

import (
	"cmp"
	"net/http"
	"slices"

	"google.golang.org/grpc"
)

// Layer is one middleware concern expressed for both transports. Any of the
// three functions may be nil when the concern does not apply to a
// transport. Lower Order values run first, i.e. sit further out.
type Layer struct {
	Name   string
	Order  int
	HTTP   func(http.Handler) http.Handler
	Unary  grpc.UnaryServerInterceptor
	Stream grpc.StreamServerInterceptor
}

// MiddlewareBuilder collects layers and produces them in execution order.
type MiddlewareBuilder struct {
	layers []Layer
}

// Add registers a layer. Adding a layer whose Name is already registered
// replaces the earlier one, so options applied twice do not stack.
func (b *MiddlewareBuilder) Add(l Layer) {
	if l.Name != "" {
		if i := slices.IndexFunc(b.layers, func(x Layer) bool { return x.Name == l.Name }); i >= 0 {
			b.layers[i] = l
			return
		}
	}
	b.layers = append(b.layers, l)
}

// Len returns the number of registered layers.
func (b *MiddlewareBuilder) Len() int { return len(b.layers) }

// sorted returns the layers ordered by Order; registration order breaks ties.
func (b *MiddlewareBuilder) sorted() []Layer {
	out := slices.Clone(b.layers)
	slices.SortStableFunc(out, func(a, c Layer) int {
		return cmp.Compare(a.Order, c.Order)
	})
	return out
}

// Handler wraps h with every HTTP layer. The lowest Order becomes the
// outermost handler.
func (b *MiddlewareBuilder) Handler(h http.Handler) http.Handler {
	layers := b.sorted()
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i].HTTP != nil {
			h = layers[i].HTTP(h)
		}
	}
	return h
}

// Interceptors returns the unary and stream interceptors in execution order.
func (b *MiddlewareBuilder) Interceptors() ([]grpc.UnaryServerInterceptor, []grpc.StreamServerInterceptor) {
	var unary []grpc.UnaryServerInterceptor
	var stream []grpc.StreamServerInterceptor

	for _, l := range b.sorted() {
		if l.Unary != nil {
			unary = append(unary, l.Unary)
		}
		if l.Stream != nil {
			stream = append(stream, l.Stream)
		}
	}
	return unary, stream
}

// Merge adds every layer of other to b.
func (b *MiddlewareBuilder) Merge(other *MiddlewareBuilder) {
	for _, l := range other.layers {
		b.Add(l)
	}
}
