package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// Client wraps an http.Client with a per-call timeout and an optional
// circuit breaker. It performs exactly one attempt per call: payment
// capture and verification requests must not be retried automatically,
// the customer retries the whole flow instead.
type Client struct {
	HTTP    *http.Client
	Breaker *Breaker
	Timeout time.Duration
	Target  string
}

// Do executes the request with a bounded timeout. When the breaker is open
// ErrOpenCircuit is returned without touching the network.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c == nil || c.HTTP == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	if c.Breaker != nil && !c.Breaker.Allow() {
		return nil, ErrOpenCircuit
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = c.HTTP.Timeout
	}
	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	resp, err := c.HTTP.Do(req.WithContext(callCtx))
	if c.Breaker != nil {
		c.Breaker.Report(err == nil && resp != nil && resp.StatusCode < http.StatusInternalServerError)
	}
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}
	if cancel != nil {
		// The deadline has to cover the body read too. Releasing the call
		// context here would cancel the connection under the caller while it
		// decodes the response, so release is deferred to Body.Close.
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
