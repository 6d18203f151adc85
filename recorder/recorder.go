// Package recorder keeps recently completed exchanges in a cache so they can
// be inspected by request ID after the fact.
package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Keksclan/goRawrListener/cache"
	"github.com/Keksclan/goRawrListener/listener"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned by Lookup when no exchange is stored for an ID.
	ErrNotFound = errors.New("recorder: exchange not found")

	// ErrDuplicateID is returned by Save when an exchange is already stored
	// under the same ID. Request IDs may come from the client, so the first
	// recorded exchange is kept.
	ErrDuplicateID = errors.New("recorder: exchange already recorded for id")
)

const keyPrefix = "exchange:"

// Exchange is the stored form of a completed request/response pair.
type Exchange struct {
	ID       string `json:"id"`
	Method   string `json:"method"`
	Target   string `json:"target"`
	Proto    string `json:"proto"`
	Host     string `json:"host,omitempty"`
	ClientIP string `json:"client_ip,omitempty"`
	Group    string `json:"group,omitempty"`

	RequestHeader    http.Header `json:"request_header,omitempty"`
	RequestBody      []byte      `json:"request_body,omitempty"`
	RequestTruncated bool        `json:"request_truncated,omitempty"`

	Status            int         `json:"status"`
	ResponseHeader    http.Header `json:"response_header,omitempty"`
	ResponseBody      []byte      `json:"response_body,omitempty"`
	ResponseTruncated bool        `json:"response_truncated,omitempty"`
	ContentLength     int64       `json:"content_length"`

	ReceivedAt time.Time     `json:"received_at"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
	Panicked   bool          `json:"panicked,omitempty"`
}

// Recorder is a listener.ResponseListener that stores every exchange in a
// cache.Cache.
type Recorder struct {
	store  cache.Cache
	ttl    time.Duration
	redact []string
	log    zerolog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithTTL sets how long exchanges are kept. Default 15 minutes.
func WithTTL(ttl time.Duration) Option {
	return func(r *Recorder) { r.ttl = ttl }
}

// WithRedactedHeaders replaces the list of headers whose values are masked
// before storage. Default Authorization, Cookie, Set-Cookie and
// Proxy-Authorization.
func WithRedactedHeaders(names ...string) Option {
	return func(r *Recorder) { r.redact = names }
}

// WithLogger sets the logger used to report storage failures.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Recorder) { r.log = log }
}

// New creates a Recorder writing to store.
func New(store cache.Cache, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		ttl:    15 * time.Minute,
		redact: []string{"Authorization", "Cookie", "Set-Cookie", "Proxy-Authorization"},
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// HandleResponse implements listener.ResponseListener. Storage errors and
// duplicate IDs are logged; they never affect the exchange.
func (r *Recorder) HandleResponse(ctx context.Context, resp *listener.Response) {
	if resp.Request.ID == "" {
		return
	}
	if err := r.Save(context.WithoutCancel(ctx), r.exchange(resp)); err != nil {
		r.log.Warn().Err(err).Str("request_id", resp.Request.ID).Msg("recording exchange failed")
	}
}

// Save stores ex under its ID unless an exchange with that ID is already
// stored, in which case it returns ErrDuplicateID and leaves the stored one
// untouched.
func (r *Recorder) Save(ctx context.Context, ex *Exchange) error {
	b, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("recorder: encode %s: %w", ex.ID, err)
	}
	stored := false
	_, err = r.store.GetOrSet(ctx, keyPrefix+ex.ID, r.ttl, func(context.Context) ([]byte, error) {
		stored = true
		return b, nil
	})
	if err != nil {
		return fmt.Errorf("recorder: store %s: %w", ex.ID, err)
	}
	if !stored {
		return fmt.Errorf("%w %s", ErrDuplicateID, ex.ID)
	}
	return nil
}

// Lookup returns the exchange recorded for id.
func (r *Recorder) Lookup(ctx context.Context, id string) (*Exchange, error) {
	b, ok, err := r.store.Get(ctx, keyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("recorder: load %s: %w", id, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	var ex Exchange
	if err := json.Unmarshal(b, &ex); err != nil {
		return nil, fmt.Errorf("recorder: decode %s: %w", id, err)
	}
	return &ex, nil
}

func (r *Recorder) exchange(resp *listener.Response) *Exchange {
	req := resp.Request
	ex := &Exchange{
		ID:                req.ID,
		Method:            req.Method,
		Target:            req.Target,
		Proto:             req.Proto,
		Host:              req.Host,
		Group:             req.Group,
		RequestHeader:     r.redacted(req.Header),
		RequestBody:       req.Body,
		RequestTruncated:  req.Truncated,
		Status:            resp.StatusCode,
		ResponseHeader:    r.redacted(resp.Header),
		ResponseBody:      resp.Body,
		ResponseTruncated: resp.Truncated,
		ContentLength:     resp.ContentLength,
		ReceivedAt:        req.ReceivedAt,
		Duration:          resp.Duration,
		Panicked:          resp.Panic != nil,
	}
	if req.ClientIP.IsValid() {
		ex.ClientIP = req.ClientIP.String()
	}
	if resp.Err != nil {
		ex.Error = resp.Err.Error()
	}
	return ex
}

func (r *Recorder) redacted(h http.Header) http.Header {
	if len(h) == 0 {
		return nil
	}
	out := h.Clone()
	for _, name := range r.redact {
		if _, ok := out[http.CanonicalHeaderKey(name)]; ok {
			out.Set(name, "[redacted]")
		}
	}
	return out
}
