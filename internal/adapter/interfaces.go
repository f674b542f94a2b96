// Package adapter provides the transport layer for talking to the sync
// server.
//
// The primary abstraction is [ServerAdapter], which decouples the sync
// coordinator from the underlying protocol. The package ships an HTTP/REST
// implementation ([NewHTTPServerAdapter]) built on resty.
//
// Every failure is wrapped in a [TransportError] carrying a
// [models.ErrorClass], so that the retry machinery can pick a backoff curve
// with [Classify] without inspecting status codes or net errors itself.
package adapter

import (
	"context"

	"github.com/binarjoin/syncengine/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/server_adapter_mock.go -package=mock

// ServerAdapter defines transport-agnostic communication with the sync
// server. Implementations are responsible for serialisation, authentication
// header management, and mapping transport-level errors to classified
// [TransportError] values.
type ServerAdapter interface {
	// PullFull downloads a complete backup of every collection the server
	// holds for the authenticated user, keyed by collection name.
	PullFull(ctx context.Context) (map[string][]models.Record, error)

	// PushBatch uploads a batch of queued mutations in order. The returned
	// slice is aligned with req.Operations: every operation gets exactly one
	// result, with operations the server did not answer for reported as
	// failed. A non-nil error means the batch as a whole did not reach the
	// server and nothing in it should be acknowledged.
	PushBatch(ctx context.Context, req models.BatchRequest) ([]models.BatchResult, error)
}

// TokenProvider supplies bearer tokens for authenticated requests. The
// adapter calls Refresh once when the server rejects a token, then retries
// the original request; a false return means re-authentication is required
// and the failure is surfaced as an auth-class error.
type TokenProvider interface {
	AccessToken() string
	Refresh(ctx context.Context) bool
	Logout()
}
