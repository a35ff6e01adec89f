// Package gateway talks to the Iranian payment gateways the wallet top-up uses.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrRejected is wrapped by every error caused by a gateway answer rather than transport.
var ErrRejected = errors.New("gateway rejected request")

const requestTimeout = 15 * time.Second

// NewHTTPClient is the client both gateways share when none is injected.
// Both APIs answer JSON, sometimes with a text/html content type on errors.
func NewHTTPClient() *resty.Client {
	return resty.New().
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json").
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			r.ForceContentType("application/json")
			return nil
		})
}

// post sends body as JSON and decodes the reply into out whatever the status
// code; both gateways carry their error details in the body.
func post(ctx context.Context, client *resty.Client, url string, body, out interface{}) error {
	resp, err := client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		SetError(out).
		Post(url)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("post %s: status %d", url, resp.StatusCode())
	}
	return nil
}
