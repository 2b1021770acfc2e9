package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/obrasync/obrasync/internal/common"
	"github.com/obrasync/obrasync/internal/logging"
)

// XSRFCookieName is the same-site cookie the backend issues; its value is
// mirrored into the XSRFHeaderName header on every request.
const (
	XSRFCookieName = "XSRF-TOKEN"
	XSRFHeaderName = "X-XSRF-TOKEN"
)

// TokenSource supplies a currently valid access token for outbound requests.
// Implementations may refresh behind the scenes; Refresh forces one after the
// server has rejected the current token.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StatusError reports a non-2xx response. It wraps the sentinel matching the
// status class so callers can use errors.Is.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return common.ErrUnauthorized
	case e.StatusCode >= http.StatusInternalServerError:
		return common.ErrUnavailable
	default:
		return nil
	}
}

// RestClient is the concrete Client. The http.Client is expected to carry a
// cookie jar so session cookies and the XSRF cookie survive across requests.
type RestClient struct {
	baseURL *url.URL
	hc      *http.Client
	tokens  TokenSource
	log     logging.Logger
}

// NewRestClient builds a RestClient for the given base URL. tokens may be nil
// for unauthenticated use (tests, health probes).
func NewRestClient(baseURL string, hc *http.Client, tokens TokenSource, log logging.Logger) (*RestClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &RestClient{baseURL: u, hc: hc, tokens: tokens, log: log}, nil
}

// Do issues the request once, and once more after a token refresh if the
// first attempt came back 401. The refresh itself is single-flight inside the
// TokenSource, so a burst of 401s produces one refresh shared by all callers.
func (c *RestClient) Do(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.doOnce(ctx, req)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
		if _, rerr := c.tokens.Refresh(ctx); rerr != nil {
			return resp, fmt.Errorf("token refresh: %w", rerr)
		}
		resp, err = c.doOnce(ctx, req)
		if err != nil {
			return resp, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp, nil
}

func (c *RestClient) doOnce(ctx context.Context, req Request) (*Response, error) {
	u := c.resolve(req.Endpoint)

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	} else {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	if c.tokens != nil {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil && !errors.Is(err, common.ErrNoRefreshToken) {
			return nil, fmt.Errorf("access token: %w", err)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	if xsrf := c.xsrfToken(); xsrf != "" {
		httpReq.Header.Set(XSRFHeaderName, xsrf)
	}

	httpResp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: body}, nil
}

// Ping checks the backend health endpoint.
func (c *RestClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve("/health"), nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: health returned %d", common.ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *RestClient) resolve(endpoint string) string {
	return strings.TrimRight(c.baseURL.String(), "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// xsrfToken reads the anti-forgery token the server planted in the cookie
// jar, if any.
func (c *RestClient) xsrfToken() string {
	if c.hc.Jar == nil {
		return ""
	}
	for _, cookie := range c.hc.Jar.Cookies(c.baseURL) {
		if cookie.Name == XSRFCookieName {
			return cookie.Value
		}
	}
	return ""
}
