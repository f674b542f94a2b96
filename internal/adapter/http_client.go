package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/models"
)

var errTokenRefresh = errors.New("token refresh failed")

type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

type httpServerAdapter struct {
	client *resty.Client
	tokens TokenProvider
	log    *logger.Logger
}

// NewHTTPServerAdapter builds the REST implementation of [ServerAdapter].
// Every call carries a per-request deadline taken from cfg.Timeout so that a
// stalled connection surfaces as a timeout-class error instead of hanging a
// sync cycle.
func NewHTTPServerAdapter(cfg HTTPClientConfig, tokens TokenProvider, log *logger.Logger) ServerAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &httpServerAdapter{client: cli, tokens: tokens, log: log}
}

func (h *httpServerAdapter) PullFull(ctx context.Context) (map[string][]models.Record, error) {
	resp, err := h.doWithAuthRetry(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.Get("/sync/full-backup")
	})
	if err != nil {
		return nil, fmt.Errorf("pull full backup: %w", err)
	}

	var fb models.FullBackupResponse
	if err = json.Unmarshal(resp.Body(), &fb); err != nil {
		return nil, fmt.Errorf("decode full backup response: %w", err)
	}
	if !fb.Success {
		return nil, &TransportError{
			Class: models.ErrorClassServer,
			Err:   fmt.Errorf("full backup rejected: %s", fb.Error),
		}
	}

	return fb.Data, nil
}

func (h *httpServerAdapter) PushBatch(ctx context.Context, req models.BatchRequest) ([]models.BatchResult, error) {
	resp, err := h.doWithAuthRetry(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetHeader("Content-Type", "application/json").
			SetBody(req).
			Post("/sync/batch")
	})
	if err != nil {
		return nil, fmt.Errorf("push batch: %w", err)
	}

	var br models.BatchResponse
	if err = json.Unmarshal(resp.Body(), &br); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	if !br.Success {
		return nil, &TransportError{
			Class: models.ErrorClassServer,
			Err:   fmt.Errorf("batch rejected: %s", br.Error),
		}
	}

	return alignResults(req.Operations, br.Results), nil
}

// alignResults pairs server results with the submitted operations. An
// operation the server did not report on counts as failed, never as
// silently applied.
func alignResults(ops []models.BatchOperation, results []models.BatchResult) []models.BatchResult {
	byID := make(map[string]models.BatchResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}

	aligned := make([]models.BatchResult, 0, len(ops))
	for _, op := range ops {
		if r, ok := byID[op.ID]; ok {
			aligned = append(aligned, r)
			continue
		}
		aligned = append(aligned, models.BatchResult{
			ID:     op.ID,
			Status: models.BatchStatusFailed,
			Error:  "no result returned for operation",
		})
	}
	return aligned
}

// doWithAuthRetry executes the request with the current bearer token. When
// the server rejects the token, the provider refreshes it and the request is
// replayed exactly once; the replay does not consume the caller's retry
// budget because the original mutation never failed on its own merits.
func (h *httpServerAdapter) doWithAuthRetry(ctx context.Context, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	resp, err := h.execute(ctx, send)
	if err == nil {
		return resp, nil
	}
	if Classify(err) != models.ErrorClassAuth {
		return nil, err
	}

	if refreshErr := h.refreshToken(ctx); refreshErr != nil {
		h.tokens.Logout()
		return nil, &TransportError{Class: models.ErrorClassAuth, Err: refreshErr}
	}

	h.log.Debug().Msg("token refreshed, replaying request")
	return h.execute(ctx, send)
}

func (h *httpServerAdapter) execute(ctx context.Context, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	req := h.client.R().SetContext(ctx)
	if token := h.tokens.AccessToken(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}

	resp, err := send(req)
	if err != nil {
		return nil, classifyRequestError(err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// refreshToken asks the provider for a fresh token, retrying transient
// refresh failures on a short exponential curve.
func (h *httpServerAdapter) refreshToken(ctx context.Context) error {
	b := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if h.tokens.Refresh(ctx) {
			return nil
		}
		return retry.RetryableError(errTokenRefresh)
	})
}
