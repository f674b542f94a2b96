package service

import "errors"

var (
	// ErrSyncInProgress is returned by re-entrant cycle requests. It is
	// informational: the running cycle covers the caller's intent.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrNoAuthToken aborts a cycle before any network traffic when the
	// token provider has nothing to offer. The caller must re-authenticate.
	ErrNoAuthToken = errors.New("no auth token present")

	// ErrOffline is returned when a cycle is requested while the transport
	// is known to be down.
	ErrOffline = errors.New("transport offline")
)
