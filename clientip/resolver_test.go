package clientip

import (
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// fakePeerAddr implements net.Addr for testing purposes.
type fakePeerAddr struct{ addr string }

func (f fakePeerAddr) Network() string { return "tcp" }
func (f fakePeerAddr) String() string  { return f.addr }

func mustResolver(t *testing.T, proxies []string, priority ...string) *Resolver {
	t.Helper()
	r, err := NewResolver(proxies, priority...)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestFromRequest_PeerAddress(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.9:4242"

	addr, ok := mustResolver(t, nil).FromRequest(req)
	if !ok {
		t.Fatal("expected an address")
	}
	if addr.String() != "203.0.113.9" {
		t.Fatalf("got %s, want 203.0.113.9", addr)
	}
}

func TestFromRequest_NilResolverUsesPeer(t *testing.T) {
	var r *Resolver
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	addr, ok := r.FromRequest(req)
	if !ok || addr.String() != "10.0.0.1" {
		t.Fatalf("got %s (ok=%v), want 10.0.0.1", addr, ok)
	}
}

func TestFromRequest_TrustedProxyUsesHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("X-Real-Ip", "198.51.100.7")

	addr, _ := mustResolver(t, []string{"10.0.0.0/8"}).FromRequest(req)
	if addr.String() != "198.51.100.7" {
		t.Fatalf("got %s, want 198.51.100.7", addr)
	}
}

func TestFromRequest_UntrustedProxyIgnoresHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.1:5000"
	req.Header.Set("X-Real-Ip", "198.51.100.7")

	addr, _ := mustResolver(t, []string{"10.0.0.0/8"}).FromRequest(req)
	if addr.String() != "192.168.1.1" {
		t.Fatalf("got %s, want 192.168.1.1", addr)
	}
}

func TestFromRequest_XForwardedForLeftMost(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", " , 198.51.100.1, 10.0.0.2")

	addr, _ := mustResolver(t, []string{"10.0.0.1"}).FromRequest(req)
	if addr.String() != "198.51.100.1" {
		t.Fatalf("got %s, want 198.51.100.1", addr)
	}
}

func TestFromRequest_TrustedProxyFallsBackToPeer(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", "not-an-ip")

	addr, _ := mustResolver(t, []string{"10.0.0.0/8"}).FromRequest(req)
	if addr.String() != "10.0.0.1" {
		t.Fatalf("got %s, want 10.0.0.1", addr)
	}
}

func TestFromRequest_CustomHeaderPriority(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("X-Real-Ip", "198.51.100.7")
	req.Header.Set("Cf-Connecting-Ip", "203.0.113.50")

	addr, _ := mustResolver(t, []string{"10.0.0.0/8"}, "Cf-Connecting-Ip").FromRequest(req)
	if addr.String() != "203.0.113.50" {
		t.Fatalf("got %s, want 203.0.113.50", addr)
	}
}

func TestFromRequest_UnparseableRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "pipe"

	if _, ok := mustResolver(t, nil).FromRequest(req); ok {
		t.Fatal("expected no address for an unparseable peer")
	}
}

func TestFromGRPC_TrustedProxyUsesMetadata(t *testing.T) {
	ctx := peer.NewContext(t.Context(), &peer.Peer{Addr: fakePeerAddr{addr: "10.0.0.1:5000"}})
	ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("x-forwarded-for", "198.51.100.3"))

	addr, ok := mustResolver(t, []string{"10.0.0.0/8"}).FromGRPC(ctx)
	if !ok {
		t.Fatal("expected an address")
	}
	if addr.String() != "198.51.100.3" {
		t.Fatalf("got %s, want 198.51.100.3", addr)
	}
}

func TestFromGRPC_NoPeer(t *testing.T) {
	if _, ok := mustResolver(t, nil).FromGRPC(t.Context()); ok {
		t.Fatal("expected no address without peer info")
	}
}

func TestNewResolver_InvalidTrustedProxy(t *testing.T) {
	if _, err := NewResolver([]string{"not-a-cidr"}); err == nil {
		t.Fatal("expected error for invalid trusted proxy")
	}
}
