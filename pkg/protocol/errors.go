package protocol

import "fmt"

// ProtocolError represents a semantic answer from the cluster or a
// violation of the framing contract.
//
// Two situations produce it:
//   - a well-formed response carrying a nonzero status byte (the server
//     rejected the request; Code holds the server's numeric error code)
//   - a response that cannot be framed at all (short header, declared
//     body length above MaxBodySize, body layout of the wrong shape)
//
// A ProtocolError is never retried automatically: retrying the same
// request against another server cannot change a semantic rejection.
type ProtocolError struct {
	// Code is the nonzero status byte for server rejections, 0 for
	// framing violations
	Code byte

	// Message describes the violation when Code is 0
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("server returned error code %d", e.Code)
	}
	return "protocol error: " + e.Message
}

// NewStatusError builds the ProtocolError for a nonzero response status.
func NewStatusError(code byte) *ProtocolError {
	return &ProtocolError{Code: code}
}

// NewFramingError builds a ProtocolError for a framing contract violation.
func NewFramingError(format string, v ...any) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, v...)}
}

// InvalidArgumentError reports malformed caller input: an empty candidate
// list, an empty name, a malformed endpoint string. It is raised
// synchronously, before any I/O happens.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Message
}

// NewInvalidArgument builds an InvalidArgumentError.
func NewInvalidArgument(format string, v ...any) *InvalidArgumentError {
	return &InvalidArgumentError{Message: fmt.Sprintf(format, v...)}
}
