package firmware

import (
	"errors"
	"fmt"
)

// Returned by Pattern.Peek when a partial match is still pending, so the
// window would be missing bytes. Use Materialize instead.
var ErrPendingMatch = errors.New("partial match pending, context window is incomplete")

// Anything that went wrong touching the filesystem (open, map, read, write,
// mkdir). Always fatal.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("couldn't %s %s: %s", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// A marker run was found but no usable name precedes it. The carver logs
// these and keeps going.
type NameRecoveryError struct {
	Boundary int64  `json:"boundary"` // Offset where the marker run starts
	Context  []byte `json:"context"`  // Copy of the context window at the time
	Reason   string `json:"reason"`
}

func (e *NameRecoveryError) Error() string {
	return fmt.Sprintf("no filename for boundary at %#x: %s", e.Boundary, e.Reason)
}

// Header decoding ran past the data, or a field wasn't what it must be
type MalformedHeaderError struct {
	Field  string
	Offset int64
	Err    error
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("malformed header field %s at %#x: %s", e.Field, e.Offset, e.Err)
}

func (e *MalformedHeaderError) Unwrap() error {
	return e.Err
}

// Invalid configuration from flags, toml or lua
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bad config %s: %s", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Whether the given error should stop the run. Only name recovery failures
// are recoverable; everything else (including unknown errors) is fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var nre *NameRecoveryError
	return !errors.As(err, &nre)
}
