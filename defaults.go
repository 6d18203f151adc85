package gorawrlistener

// DefaultOptions returns the recommended set of options for production use:
// panic recovery and echoing the request ID on responses.
func DefaultOptions() []Option {
	return []Option{
		WithRecovery(),
		WithEchoRequestID(),
	}
}
