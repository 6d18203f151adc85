// Package capture records what passes through an HTTP exchange without
// altering it: the request body is replayed to the handler and the response
// is forwarded byte for byte.
package capture

import (
	"bufio"
	"bytes"
	"net"
	"net/http"
)

// Writer wraps http.ResponseWriter to capture the status code, the number of
// bytes written and a bounded copy of the body. It delegates Flush, Hijack
// and Unwrap so streaming, upgrades and http.ResponseController keep working.
type Writer struct {
	http.ResponseWriter

	status      int
	wroteHeader bool
	written     int64

	limit     int
	body      bytes.Buffer
	truncated bool
}

// NewWriter wraps w, copying at most limit body bytes. A limit of zero
// disables body capture.
func NewWriter(w http.ResponseWriter, limit int) *Writer {
	return &Writer{ResponseWriter: w, status: http.StatusOK, limit: limit}
}

// WriteHeader records the first final status code and forwards every call.
// Informational 1xx codes other than 101 are forwarded without being
// recorded; the handler still has to send a final status.
func (cw *Writer) WriteHeader(code int) {
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		cw.ResponseWriter.WriteHeader(code)
		return
	}
	if !cw.wroteHeader {
		cw.status = code
		cw.wroteHeader = true
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *Writer) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.wroteHeader = true
	}
	n, err := cw.ResponseWriter.Write(b)
	cw.written += int64(n)
	cw.keep(b[:n])
	return n, err
}

func (cw *Writer) keep(b []byte) {
	if cw.limit <= 0 {
		return
	}
	room := cw.limit - cw.body.Len()
	if room <= 0 {
		if len(b) > 0 {
			cw.truncated = true
		}
		return
	}
	if len(b) > room {
		b = b[:room]
		cw.truncated = true
	}
	cw.body.Write(b)
}

// Flush implements http.Flusher.
func (cw *Writer) Flush() {
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		if !cw.wroteHeader {
			cw.wroteHeader = true
		}
		f.Flush()
	}
}

// Hijack implements http.Hijacker. Once hijacked the response counts as
// started, so nothing else is written through the wrapper.
func (cw *Writer) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := cw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	conn, rw, err := h.Hijack()
	if err == nil {
		cw.wroteHeader = true
	}
	return conn, rw, err
}

// Unwrap returns the underlying ResponseWriter so http.ResponseController
// can discover optional interfaces on the original writer.
func (cw *Writer) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

// Status returns the first status code written, or 200.
func (cw *Writer) Status() int { return cw.status }

// WroteHeader reports whether the handler has started the response.
func (cw *Writer) WroteHeader() bool { return cw.wroteHeader }

// Written returns the number of body bytes forwarded to the client.
func (cw *Writer) Written() int64 { return cw.written }

// Body returns the captured body prefix and whether it was truncated.
func (cw *Writer) Body() ([]byte, bool) {
	if cw.body.Len() == 0 {
		return nil, cw.truncated
	}
	return bytes.Clone(cw.body.Bytes()), cw.truncated
}
