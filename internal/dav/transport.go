package dav

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// BasicAuthTransport adds HTTP Basic credentials to every outgoing
// request and logs request and response bodies at debug level.
type BasicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
	Logger    *slog.Logger
}

func NewBasicAuthTransport(username, password string, transport http.RoundTripper, logger *slog.Logger) *BasicAuthTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BasicAuthTransport{
		Username:  username,
		Password:  password,
		Transport: transport,
		Logger:    logger,
	}
}

func (t *BasicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Username == "" {
		return nil, errors.New("basic auth username cannot be empty")
	}
	if t.Password == "" {
		return nil, errors.New("basic auth password cannot be empty")
	}

	// RoundTrippers must not modify the caller's request, so the body
	// read for logging is handed to the clone only.
	out := req.Clone(req.Context())
	reqBody := ""
	if req.Body != nil && req.Body != http.NoBody {
		bodyBytes, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		reqBody = string(bodyBytes)
		out.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	t.Logger.Debug("outgoing dav request",
		"method", out.Method,
		"url", out.URL.String(),
		"body", reqBody)

	req = out
	req.SetBasicAuth(t.Username, t.Password)

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		t.Logger.Debug("dav request failed", "method", req.Method, "url", req.URL.String(), "error", err)
		return nil, err
	}

	respBody := ""
	if resp.Body != nil {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err == nil {
			respBody = string(bodyBytes)
			resp.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}
	}

	t.Logger.Debug("incoming dav response",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.Status,
		"body", respBody)

	return resp, nil
}
