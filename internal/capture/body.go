package capture

import (
	"bytes"
	"io"
	"net/http"
)

// Body reads up to limit bytes of r's body and replaces r.Body with a reader
// that replays the captured bytes followed by whatever was not read, so the
// downstream handler sees the complete, unmodified body.
//
// truncated is set when the body holds more than limit bytes. On a read
// error the replaying body yields the bytes read so far followed by the same
// error, and the error is returned to the caller.
func Body(r *http.Request, limit int) (captured []byte, truncated bool, err error) {
	if r.Body == nil || r.Body == http.NoBody || limit <= 0 {
		return nil, false, nil
	}

	// One extra byte tells a body of exactly limit bytes apart from a longer one.
	buf, err := io.ReadAll(io.LimitReader(r.Body, int64(limit)+1))

	rest := io.Reader(r.Body)
	if err != nil {
		rest = errReader{err}
	}
	r.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(buf), rest), closer: r.Body}

	truncated = len(buf) > limit
	if truncated {
		buf = buf[:limit]
	}
	return bytes.Clone(buf), truncated, err
}

type replayBody struct {
	io.Reader
	closer io.Closer
}

func (b *replayBody) Close() error { return b.closer.Close() }

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
