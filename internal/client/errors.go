package client

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening at the bridge address
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeHTTP indicates a non-2xx reply from the bridge
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed reply
	ErrTypeParse
)

func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// BridgeError is returned by every Client call.
type BridgeError struct {
	Type       ErrorType
	Message    string
	StatusCode int   // HTTP status code, when the bridge answered
	Err        error // underlying error, if any
	Retryable  bool
}

func (e *BridgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// classifyNetworkError maps a transport error onto a BridgeError.
func classifyNetworkError(message string, err error) *BridgeError {
	be := &BridgeError{Type: ErrTypeNetwork, Message: message, Err: err, Retryable: true}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case os.IsTimeout(err):
		be.Type = ErrTypeTimeout
	case errors.As(err, &dnsErr):
		be.Type = ErrTypeDNS
		be.Retryable = false
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED):
		be.Type = ErrTypeConnectionRefused
	}
	return be
}

func newHTTPError(statusCode int, message string) *BridgeError {
	return &BridgeError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500 && statusCode != 502,
	}
}

func newParseError(message string, err error) *BridgeError {
	return &BridgeError{Type: ErrTypeParse, Message: message, Err: err}
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.StatusCode
	}
	return 0
}

// TroubleshootingHint returns a short hint for the CLI to print under err.
func TroubleshootingHint(err error) string {
	var be *BridgeError
	if !errors.As(err, &be) {
		return ""
	}
	switch be.Type {
	case ErrTypeConnectionRefused:
		return "Is `greeac run` listening at that address?"
	case ErrTypeDNS:
		return "Use an IP address, or `greeac scan` to find the bridge."
	case ErrTypeTimeout:
		return "The bridge did not answer in time. Check the network path."
	case ErrTypeHTTP:
		if be.StatusCode == 502 {
			return "The bridge could not write to the unit. Check the serial link."
		}
		if be.StatusCode == 400 {
			return "The request was rejected. See `/api/traits` for valid values."
		}
		if be.StatusCode == 429 {
			return "The bridge limits how often commands are sent. Wait a moment and retry."
		}
	}
	return ""
}
