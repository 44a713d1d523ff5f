package broker

import "fmt"

// ValidationError reports bad input caught before any network I/O.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// CredentialsError reports missing or unusable client credentials,
// detected before the upstream is contacted.
type CredentialsError struct {
	ClientCode string
	Segment    string
	Msg        string
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("client %s: %s credentials: %s", e.ClientCode, e.Segment, e.Msg)
}

// AuthError reports a login rejected by the upstream broker.
type AuthError struct {
	ClientCode string
	Msg        string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for client %s: %s", e.ClientCode, e.Msg)
}

// UpstreamError reports a non-2xx response or transport failure from the
// upstream broker.
type UpstreamError struct {
	StatusCode int
	Msg        string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (HTTP %d): %s", e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("upstream error: %s", e.Msg)
}

// ProtocolError reports a 2xx response whose body could not be interpreted
// as success. The upstream envelope is not uniform across endpoints, so
// this covers both explicit error envelopes and unrecognizable shapes.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected upstream response: %s", e.Msg)
}
