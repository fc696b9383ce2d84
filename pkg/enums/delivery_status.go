package enums

import (
	"fmt"
	"strings"
)

// DeliveryStatus is the terminal outcome of one channel-send attempt. None of
// the values trigger a retry; failures are recorded and counted only.
type DeliveryStatus string

const (
	// StatusOK means the channel accepted the event.
	StatusOK DeliveryStatus = "ok"
	// StatusDropped is a policy-induced short circuit (channel disabled or
	// chaos drop), not an error.
	StatusDropped DeliveryStatus = "dropped"
	// StatusSkipped means required configuration was missing.
	StatusSkipped DeliveryStatus = "skipped"
	// StatusDryRun is an intentional no-op send, logged and counted as
	// accepted.
	StatusDryRun DeliveryStatus = "dry_run"
	// StatusError covers transport-level and internal faults.
	StatusError DeliveryStatus = "error"
	// StatusInvalid marks a payload that failed pre-send validation.
	StatusInvalid DeliveryStatus = "invalid"
)

const httpStatusPrefix = "http_"

// HTTPStatus builds the status for a non-2xx remote response.
func HTTPStatus(code int) DeliveryStatus {
	return DeliveryStatus(fmt.Sprintf("%s%d", httpStatusPrefix, code))
}

// String implements fmt.Stringer.
func (s DeliveryStatus) String() string {
	return string(s)
}

// IsHTTPFailure reports whether the status encodes a remote rejection.
func (s DeliveryStatus) IsHTTPFailure() bool {
	return strings.HasPrefix(string(s), httpStatusPrefix)
}

// Accepted reports whether the attempt counts toward per-channel totals.
// Dry runs count: the event was fully assembled and would have been sent.
func (s DeliveryStatus) Accepted() bool {
	return s == StatusOK || s == StatusDryRun
}

// IsFailure reports whether the status carries an error detail.
func (s DeliveryStatus) IsFailure() bool {
	return s == StatusError || s == StatusInvalid || s.IsHTTPFailure()
}
