package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrNoIdentifier      = errors.New("no usable identifier")
	ErrPathOutsideRoot   = errors.New("path resolves outside storage root")
	ErrMalformedPayload  = errors.New("malformed upstream payload")
	ErrMalformedContent  = errors.New("malformed media content")
	ErrIncompleteAsset   = errors.New("asset failed completeness check")
	ErrUnsupportedLink   = errors.New("unsupported share link")
	ErrNotificationQueue = errors.New("notification queue unavailable")
)

// FetchError describes a failed asset download.
type FetchError struct {
	URL       string
	Status    int
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TransportError is a network-level failure talking to the platform API.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: transport: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError is a platform-side rejection (bad status, error sentinel, empty body).
type UpstreamError struct {
	Op      string
	Status  int
	Code    int
	Message string
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("%s: upstream code %d: %s", e.Op, e.Code, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: upstream status %d", e.Op, e.Status)
	default:
		return fmt.Sprintf("%s: upstream: %s", e.Op, e.Message)
	}
}

// ConfigError reports a missing value together with the setting that could supply it.
type ConfigError struct {
	Field    string
	Fallback string
}

func (e *ConfigError) Error() string {
	if e.Fallback == "" {
		return fmt.Sprintf("missing %s", e.Field)
	}
	return fmt.Sprintf("missing %s (configure %s as a default)", e.Field, e.Fallback)
}

// IsTransient reports whether err is worth retrying against the same target.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.Status != 0 || fe.Err == nil {
			return fe.Transient
		}
		if fe.Transient {
			return true
		}
		err = fe.Err
	}

	var te *TransportError
	if errors.As(err, &te) {
		return true
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status >= 500 || ue.Status == 429
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "connection reset", "connection refused", "broken pipe", "temporary failure"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// HTTPStatusTransient classifies an HTTP status of a media or API response.
func HTTPStatusTransient(status int) bool {
	return status >= 500 || status == 408 || status == 429
}
