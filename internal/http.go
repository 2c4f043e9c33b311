package internal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	rederrors "github.com/jamesprial/go-reddit-client/pkg/errors"
	"github.com/jamesprial/go-reddit-client/pkg/types"
)

// TokenSource supplies bearer tokens for outbound requests and accepts
// invalidation after the service rejects one. *Authenticator implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(token string)
}

// Client manages communication with the Reddit API. Every request passes
// through the shared rate limiter before dispatch and feeds its response
// headers back into it afterwards, success or not.
type Client struct {
	client    *http.Client
	BaseURL   *url.URL
	UserAgent string
	tokens    TokenSource
	limiter   *RateLimiter
	policy    RetryPolicy
	logger    *slog.Logger
}

// NewClient returns a new Reddit API client. A nil httpClient selects
// http.DefaultClient; a nil tokens source sends unauthenticated requests,
// which is only useful in tests.
func NewClient(httpClient *http.Client, tokens TokenSource, limiter *RateLimiter, baseURL, userAgent string, policy RetryPolicy, logger *slog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &rederrors.ConfigError{Field: "BaseURL", Message: err.Error()}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if limiter == nil {
		limiter = NewRateLimiter(RateLimitConfig{}, logger)
	}

	return &Client{
		client:    httpClient,
		BaseURL:   parsedURL,
		UserAgent: userAgent,
		tokens:    tokens,
		limiter:   limiter,
		policy:    policy.normalize(),
		logger:    logger,
	}, nil
}

// Limiter exposes the shared rate limiter, primarily for diagnostics.
func (c *Client) Limiter() *RateLimiter {
	return c.limiter
}

// NewRequest creates an API request. A relative URL can be provided in path,
// in which case it is resolved relative to the BaseURL of the Client.
// Authorization is attached at dispatch time so retries can pick up a
// refreshed token.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u, err := c.BaseURL.Parse(path)
	if err != nil {
		return nil, &rederrors.ConfigError{Field: "path", Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &rederrors.TransportError{Err: err}
	}

	req.Header.Set("User-Agent", c.UserAgent)

	return req, nil
}

// Do sends an API request and returns the API response. The response body is
// JSON decoded into the Thing pointed to by v, or returned as an error if an
// API error has occurred.
func (c *Client) Do(req *http.Request, v *types.Thing) (*http.Response, error) {
	resp, body, err := c.execute(req)
	if err != nil {
		return resp, err
	}

	if v != nil {
		if err := json.Unmarshal(body, v); err != nil {
			return resp, &rederrors.ParseError{Operation: req.URL.Path, Err: err}
		}
	}

	return resp, nil
}

// DoRaw executes an API request and returns the raw response bytes. This is
// used for endpoints that return non-standard JSON structures.
func (c *Client) DoRaw(req *http.Request) ([]byte, error) {
	_, body, err := c.execute(req)
	return body, err
}

// execute runs the full dispatch loop: rate-limiter gate, auth header,
// send, header reconciliation, and the retry matrix. 401 invalidates the
// credential and retries once with a fresh token; 429 backs off by the
// server-advised delay; 5xx and transport failures back off exponentially
// under the shared policy; any other non-2xx status is terminal.
func (c *Client) execute(req *http.Request) (*http.Response, []byte, error) {
	ctx := req.Context()

	var (
		refreshedAuth  bool
		netAttempts    int
		rateAttempts   int
		serverAttempts int
	)

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, &rederrors.TransportError{Err: err}
		}

		attempt, token, err := c.prepareAttempt(req)
		if err != nil {
			return nil, nil, err
		}

		resp, err := c.client.Do(attempt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, &rederrors.TransportError{Err: ctx.Err()}
			}
			if c.policy.Exhausted(netAttempts) {
				return nil, nil, &rederrors.TransportError{Err: err}
			}
			if c.logger != nil {
				c.logger.Debug("request failed, retrying", "url", req.URL.Path, "err", err)
			}
			if serr := Sleep(ctx, c.policy.Backoff(netAttempts)); serr != nil {
				return nil, nil, &rederrors.TransportError{Err: serr}
			}
			netAttempts++
			continue
		}

		c.limiter.UpdateFromHeaders(resp.Header)

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return resp, nil, &rederrors.TransportError{Err: err}
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, body, nil

		case resp.StatusCode == http.StatusUnauthorized:
			if c.tokens == nil || refreshedAuth {
				return resp, body, &rederrors.AuthError{
					Reason:     rederrors.AuthExpired,
					StatusCode: resp.StatusCode,
					Body:       string(body),
				}
			}
			c.tokens.Invalidate(token)
			refreshedAuth = true
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := retryAfterDelay(resp.Header)
			if c.policy.Exhausted(rateAttempts) {
				return resp, body, &rederrors.RateLimitError{RetryAfter: retryAfter}
			}
			delay := retryAfter
			if delay <= 0 {
				delay = c.policy.Backoff(rateAttempts)
			}
			c.limiter.DeferRequests(delay)
			if serr := Sleep(ctx, delay); serr != nil {
				return resp, body, &rederrors.TransportError{Err: serr}
			}
			rateAttempts++
			continue

		case resp.StatusCode >= 500:
			if c.policy.Exhausted(serverAttempts) {
				return resp, body, &rederrors.ServerError{
					StatusCode: resp.StatusCode,
					Attempts:   serverAttempts + 1,
				}
			}
			if c.logger != nil {
				c.logger.Debug("server error, retrying",
					"url", req.URL.Path,
					"status", resp.StatusCode)
			}
			if serr := Sleep(ctx, c.policy.Backoff(serverAttempts)); serr != nil {
				return resp, body, &rederrors.TransportError{Err: serr}
			}
			serverAttempts++
			continue

		default:
			return resp, body, &rederrors.APIError{
				StatusCode: resp.StatusCode,
				Body:       string(body),
			}
		}
	}
}

// prepareAttempt clones the request with a replayable body and a current
// bearer token. The token used is returned so a 401 can invalidate exactly
// the credential that was rejected.
func (c *Client) prepareAttempt(req *http.Request) (*http.Request, string, error) {
	attempt := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, "", &rederrors.TransportError{Err: err}
		}
		attempt.Body = body
	}

	var token string
	if c.tokens != nil {
		var err error
		token, err = c.tokens.Token(req.Context())
		if err != nil {
			return nil, "", err
		}
		attempt.Header.Set("Authorization", "Bearer "+token)
	}

	return attempt, token, nil
}

// retryAfterDelay parses a Retry-After header in seconds. Zero when absent
// or unparseable.
func retryAfterDelay(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(v, ParseFloatBitSize)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
