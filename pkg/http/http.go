package http

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/NamanBalaji/vbridge/internal/logger"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultIdleTimeout    = 90 * time.Second
	keepAlivePeriod       = 30 * time.Second
	maxIdleConns          = 100
	tlsHandshakeTimeout   = 10 * time.Second
	expectContinueTimeout = 1 * time.Second
	maxConnsPerHost       = 16

	DefaultUserAgent = "vbridge/1.0"
)

type Client struct {
	*http.Client
}

// NewClient creates an HTTP client with custom transport settings. A zero
// timeout leaves request duration unbounded, which long video streams need;
// dial and handshake timeouts still apply.
func NewClient(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultConnectTimeout,
			KeepAlive: keepAlivePeriod,
		}).DialContext,
		MaxIdleConns:          maxIdleConns,
		IdleConnTimeout:       defaultIdleTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: expectContinueTimeout,
		DisableCompression:    true,
		MaxConnsPerHost:       maxConnsPerHost,
	}

	return &Client{
		&http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// Get performs a GET request with query parameters. The body is returned
// streamed; error statuses are classified into sentinel errors.
func (c *Client) Get(ctx context.Context, urlStr string, params url.Values) (*http.Response, error) {
	resp, err := c.GetRaw(ctx, urlStr, params)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		logger.Errorf("GET %s returned status %d", urlStr, resp.StatusCode)
		resp.Body.Close()

		return nil, ClassifyHTTPError(resp.StatusCode)
	}

	return resp, nil
}

// GetRaw performs a GET request and returns the response regardless of status
// code. Callers that read API semantics out of error bodies use this.
func (c *Client) GetRaw(ctx context.Context, urlStr string, params url.Values) (*http.Response, error) {
	req, err := generateRequest(ctx, http.MethodGet, urlStr, params, http.NoBody)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Sending GET request to %s", urlStr)

	resp, err := c.Do(req)
	if err != nil {
		logger.Errorf("GET request failed for %s: %v", urlStr, err)
		return nil, ClassifyError(err)
	}

	return resp, nil
}

// PostQuery performs a POST request carrying all parameters in the query
// string and no body. The response is returned regardless of status code:
// the upload API reports refusals as JSON bodies on non-2xx statuses.
func (c *Client) PostQuery(ctx context.Context, urlStr string, params url.Values) (*http.Response, error) {
	req, err := generateRequest(ctx, http.MethodPost, urlStr, params, http.NoBody)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Sending POST request to %s", urlStr)

	resp, err := c.Do(req)
	if err != nil {
		logger.Errorf("POST request failed for %s: %v", urlStr, err)
		return nil, ClassifyError(err)
	}

	return resp, nil
}

// PostChunk performs a POST request with parameters in the query string and a
// single multipart file field holding the given bytes.
func (c *Client) PostChunk(ctx context.Context, urlStr string, params url.Values, field string, chunk []byte) (*http.Response, error) {
	var body bytes.Buffer

	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile(field, field)
	if err != nil {
		return nil, ErrRequestCreation
	}

	if _, err := part.Write(chunk); err != nil {
		return nil, ErrRequestCreation
	}

	if err := mw.Close(); err != nil {
		return nil, ErrRequestCreation
	}

	req, err := generateRequest(ctx, http.MethodPost, urlStr, params, &body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", mw.FormDataContentType())

	logger.Debugf("Sending %d byte chunk to %s", len(chunk), urlStr)

	resp, err := c.Do(req)
	if err != nil {
		logger.Errorf("Chunk POST failed for %s: %v", urlStr, err)
		return nil, ClassifyError(err)
	}

	return resp, nil
}

// generateRequest creates a request with the query parameters appended to the
// URL and a default User-Agent set.
func generateRequest(ctx context.Context, method, urlStr string, params url.Values, body io.Reader) (*http.Request, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		logger.Errorf("Failed to parse URL %s: %v", urlStr, err)
		return nil, ErrRequestCreation
	}

	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}

		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		logger.Errorf("Failed to create %s request for %s: %v", method, urlStr, err)
		return nil, ErrRequestCreation
	}

	req.Header.Set("User-Agent", DefaultUserAgent)

	return req, nil
}
