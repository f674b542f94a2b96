package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/binarjoin/syncengine/models"
)

// classifyRequestError maps a transport-level failure (the request never got
// a response) to an error class. Deadline expiry retries on the fast curve;
// everything else network-shaped waits for the connection to come back.
func classifyRequestError(err error) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Class: models.ErrorClassTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Class: models.ErrorClassTimeout, Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &TransportError{Class: models.ErrorClassNetwork, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &TransportError{Class: models.ErrorClassNetwork, Err: err}
	}

	return &TransportError{Class: models.ErrorClassNetwork, Err: err}
}

// mapHTTPError converts a non-2xx response into a classified sentinel error.
func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}

	switch resp.StatusCode() {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &TransportError{
			Class: models.ErrorClassValidation,
			Err:   fmt.Errorf("%w: %s", ErrBadRequest, body),
		}
	case http.StatusUnauthorized:
		return &TransportError{
			Class: models.ErrorClassAuth,
			Err:   fmt.Errorf("%w: %s", ErrUnauthorized, body),
		}
	case http.StatusForbidden:
		return &TransportError{
			Class: models.ErrorClassAuth,
			Err:   fmt.Errorf("%w: %s", ErrForbidden, body),
		}
	case http.StatusNotFound:
		return &TransportError{
			Class: models.ErrorClassServer,
			Err:   fmt.Errorf("%w: %s", ErrNotFound, body),
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &TransportError{
			Class: models.ErrorClassTimeout,
			Err:   fmt.Errorf("http %d: %s", resp.StatusCode(), body),
		}
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return &TransportError{
			Class: models.ErrorClassServer,
			Err:   fmt.Errorf("%w: %s", ErrBadGateway, body),
		}
	case http.StatusInternalServerError:
		return &TransportError{
			Class: models.ErrorClassServer,
			Err:   fmt.Errorf("%w: %s", ErrInternalServerError, body),
		}
	default:
		class := models.ErrorClassUnknown
		if resp.StatusCode() >= http.StatusInternalServerError {
			class = models.ErrorClassServer
		}
		return &TransportError{
			Class: class,
			Err:   fmt.Errorf("http %d: %s", resp.StatusCode(), body),
		}
	}
}
