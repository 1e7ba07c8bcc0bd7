// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/pollmaker/lib/netutil"
	"github.com/bureau-foundation/pollmaker/lib/ref"
	"github.com/bureau-foundation/pollmaker/lib/secret"
)

type ClientConfig struct {
	// HomeserverURL is the homeserver's base URL, for example
	// "https://matrix.example.org".
	HomeserverURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client talks to one homeserver without credentials. Sessions created
// from it share its transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, fmt.Errorf("messaging: HomeserverURL is required")
	}
	parsed, err := url.Parse(config.HomeserverURL)
	if err != nil {
		return nil, fmt.Errorf("messaging: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("messaging: HomeserverURL %q must be http or https", config.HomeserverURL)
	}

	client := &Client{
		// Paths are appended already escaped, so the base stays a
		// string rather than a url.URL that would re-encode them.
		baseURL:    strings.TrimRight(config.HomeserverURL, "/"),
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}
	if client.httpClient == nil {
		client.httpClient = http.DefaultClient
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	return client, nil
}

func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// SessionFromToken copies accessToken into a secret.Buffer and returns
// a session that authenticates with it. The token is not checked here;
// use WhoAmI for that. Close the session when done.
func (c *Client) SessionFromToken(userID ref.UserID, accessToken string) (*DirectSession, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("messaging: empty access token for %s", userID)
	}
	token, err := secret.NewFromBytes([]byte(accessToken))
	if err != nil {
		return nil, fmt.Errorf("messaging: protecting access token: %w", err)
	}
	return &DirectSession{client: c, accessToken: token, userID: userID}, nil
}

// newRequest builds a request for path (already escaped) with an
// optional JSON body and bearer token.
func (c *Client) newRequest(ctx context.Context, method, path string, accessToken *secret.Buffer, requestBody any, query url.Values) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("messaging: encoding request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("messaging: building request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if accessToken != nil {
		request.Header.Set("Authorization", "Bearer "+accessToken.String())
	}
	return request, nil
}

// doRequest sends one request and returns the body of a 2xx response.
// Any other status becomes a *MatrixError. accessToken and query may
// be nil.
func (c *Client) doRequest(ctx context.Context, method, path string, accessToken *secret.Buffer, requestBody any, query url.Values) ([]byte, error) {
	request, err := c.newRequest(ctx, method, path, accessToken, requestBody, query)
	if err != nil {
		return nil, err
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, matrixError(method, path, response)
	}
	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("messaging: reading response to %s %s: %w", method, path, err)
	}
	return body, nil
}

// matrixError decodes the standard errcode/error body. Anything else
// (an HTML page from a proxy, say) keeps its status code under
// M_UNKNOWN so callers can still recognise a 404.
func matrixError(method, path string, response *http.Response) *MatrixError {
	text := netutil.ErrorBody(response.Body)
	var decoded MatrixError
	if err := json.Unmarshal([]byte(text), &decoded); err != nil || decoded.Code == "" {
		decoded = MatrixError{
			Code:    ErrCodeUnknown,
			Message: fmt.Sprintf("unexpected response from %s %s: %s", method, path, text),
		}
	}
	decoded.StatusCode = response.StatusCode
	return &decoded
}
