package index

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// ErrPartialBulk is returned when the cluster rejected some documents of a bulk request
var ErrPartialBulk = errors.New("bulk request partially failed")

// HTTPError is a non-2xx answer of the cluster
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

// NewHTTPError creates an HTTPError
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// IsTransient reports whether a cluster error is worth retrying: transport
// failures and overload statuses are, everything else is not
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
