// Package dav talks to a CalDAV/CardDAV server: PUT and DELETE of single
// resources and REPORT over a collection, all with HTTP Basic auth.
package dav

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	ContentTypeCalendar = "text/calendar; charset=utf-8"
	ContentTypeVCard    = "text/vcard; charset=utf-8"
	contentTypeXML      = "application/xml; charset=utf-8"

	DefaultReportTimeout = 30 * time.Second
)

type Credentials struct {
	Username string
	Password string
}

// Remote is the set of DAV operations used by the sync and import
// services.
type Remote interface {
	Put(ctx context.Context, url, contentType string, body []byte) error
	Delete(ctx context.Context, url string) error
	Report(ctx context.Context, url string, body []byte) ([]byte, error)
}

// Connector hands out a Remote bound to one set of credentials.
type Connector interface {
	Connect(creds Credentials) Remote
}

type Options struct {
	Transport     http.RoundTripper
	Logger        *slog.Logger
	ReportTimeout time.Duration
}

// Dialer is the production Connector.
type Dialer struct {
	opts Options
}

func NewDialer(opts Options) *Dialer {
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = DefaultReportTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dialer{opts: opts}
}

func (d *Dialer) Connect(creds Credentials) Remote {
	return NewClient(creds, d.opts)
}

type Client struct {
	client        *http.Client
	logger        *slog.Logger
	reportTimeout time.Duration
}

func NewClient(creds Credentials, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.ReportTimeout
	if timeout <= 0 {
		timeout = DefaultReportTimeout
	}
	return &Client{
		client: &http.Client{
			Transport: NewBasicAuthTransport(creds.Username, creds.Password, opts.Transport, logger),
		},
		logger:        logger,
		reportTimeout: timeout,
	}
}

// Put creates or overwrites the resource at url.
func (c *Client) Put(ctx context.Context, url, contentType string, body []byte) error {
	_, err := c.do(ctx, http.MethodPut, url, body, map[string]string{"Content-Type": contentType})
	return err
}

// Delete removes the resource at url.
func (c *Client) Delete(ctx context.Context, url string) error {
	_, err := c.do(ctx, http.MethodDelete, url, nil, nil)
	return err
}

// Report runs a Depth 1 REPORT against a collection and returns the raw
// multistatus body. The call is bounded by the configured report timeout.
func (c *Client) Report(ctx context.Context, url string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.reportTimeout)
	defer cancel()

	return c.do(ctx, "REPORT", url, body, map[string]string{
		"Content-Type": contentTypeXML,
		"Depth":        "1",
	})
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &RemoteError{Method: method, URL: url, Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("dav request failed", "method", method, "url", url, "error", err)
		return nil, &RemoteError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Method: method, URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("dav request rejected",
			"method", method,
			"url", url,
			"status_code", resp.StatusCode)
		return nil, &RemoteError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.Debug("dav request complete", "method", method, "url", url, "status_code", resp.StatusCode)
	return respBody, nil
}
