package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/devicedata/datacollector/pkg/envelope"
)

// HTTPClient posts envelopes as JSON to a fixed URL.
type HTTPClient struct {
	url        string
	userAgent  string
	httpClient *http.Client
}

var _ Sender = &HTTPClient{}

// NewHTTPClient is a constructor for creating a new HTTPClient
func NewHTTPClient(opts Options) *HTTPClient {
	return &HTTPClient{
		url:       opts.Endpoint,
		userAgent: opts.UserAgent,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// Send posts env and returns nil on 200 or 201.
func (c *HTTPClient) Send(ctx context.Context, env envelope.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return &envelope.EncodingError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	logrus.WithFields(logrus.Fields{
		"url":      c.url,
		"checksum": env.Checksum,
		"bytes":    len(body),
	}).Trace("sending envelope")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyRoundTripError(err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode <= 0 {
		return &Error{Kind: KindInvalidResponse}
	}

	// The body is not interpreted, only counted.
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		logrus.Debugf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &Error{Kind: KindServerError, StatusCode: resp.StatusCode}
	}

	logrus.WithFields(logrus.Fields{
		"statusCode": resp.StatusCode,
		"bytes":      n,
	}).Debug("data sent successfully")

	return nil
}

// Close releases pooled connections.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// classifyRoundTripError separates responses that could not be parsed from
// failures before any response arrived. net/http does not export its parse
// errors, so the message is all there is to go on.
func classifyRoundTripError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetwork, Err: err}
	}
	msg := err.Error()
	if strings.Contains(msg, "malformed HTTP") || strings.Contains(msg, "malformed MIME header") {
		return &Error{Kind: KindInvalidResponse, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}
