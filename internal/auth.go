package internal

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	rederrors "github.com/jamesprial/go-reddit-client/pkg/errors"
)

const defaultTokenEndpointPath = "api/v1/access_token"

// Grant types understood by the Reddit token endpoint.
const (
	// GrantPassword is the script-app flow: client id/secret plus
	// username/password exchanged for a token in one round trip.
	GrantPassword = "password"
	// GrantClientCredentials is the confidential app-only flow.
	GrantClientCredentials = "client_credentials"
	// GrantInstalledClient is the installed-app flow: client id (no
	// secret) plus a device id, scoped to anonymous permissions.
	GrantInstalledClient = "https://oauth.reddit.com/grants/installed_client"
)

// DefaultRefreshSkew is how long before expiry a credential is refreshed.
const DefaultRefreshSkew = 60 * time.Second

// Credential is an issued access token together with its expiry. Credentials
// are immutable: a refresh installs a new value, it never mutates the old one.
type Credential struct {
	AccessToken string
	TokenType   string
	Scope       string
	Grant       string
	ExpiresAt   time.Time
}

// ExpiresWithin reports whether the credential is expired or will expire
// within the given skew.
func (c *Credential) ExpiresWithin(skew time.Duration) bool {
	return !time.Now().Add(skew).Before(c.ExpiresAt)
}

// AuthConfig carries everything the authenticator needs to run a grant flow.
type AuthConfig struct {
	// Username and Password are required for GrantPassword only.
	Username string
	Password string

	// ClientID is required for every grant. ClientSecret is empty for
	// GrantInstalledClient.
	ClientID     string
	ClientSecret string

	// DeviceID identifies the installation for GrantInstalledClient.
	// A random one is generated when empty.
	DeviceID string

	UserAgent string

	// BaseURL is the OAuth host, e.g. "https://www.reddit.com/".
	BaseURL string

	// Grant selects the flow. Defaults to GrantClientCredentials.
	Grant string

	// RefreshSkew is how long before expiry to refresh. Defaults to
	// DefaultRefreshSkew.
	RefreshSkew time.Duration

	// Retry bounds re-attempts of the token exchange on network failure.
	Retry RetryPolicy

	Logger *slog.Logger
}

// Authenticator obtains and refreshes OAuth access tokens. It is safe for
// concurrent use: a single in-flight exchange serves every caller that
// observes an expired credential at the same time.
type Authenticator struct {
	client    *http.Client
	userAgent string
	tokenURL  *url.URL
	clientID  string
	secret    string
	form      url.Values
	grant     string
	skew      time.Duration
	policy    RetryPolicy
	logger    *slog.Logger

	mu    sync.Mutex
	cred  *Credential
	group singleflight.Group
}

// NewAuthenticator creates a new authenticator for the configured grant flow.
// If a nil httpClient is provided, http.DefaultClient will be used.
func NewAuthenticator(httpClient *http.Client, cfg AuthConfig) (*Authenticator, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &rederrors.ConfigError{Field: "BaseURL", Message: err.Error()}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}
	tokenURL, err := parsedURL.Parse(defaultTokenEndpointPath)
	if err != nil {
		return nil, &rederrors.ConfigError{Field: "BaseURL", Message: err.Error()}
	}

	grant := cfg.Grant
	if grant == "" {
		grant = GrantClientCredentials
	}

	form := url.Values{}
	form.Set("grant_type", grant)
	switch grant {
	case GrantPassword:
		if cfg.Username == "" || cfg.Password == "" {
			return nil, &rederrors.ConfigError{Field: "Username", Message: "username and password are required for the password grant"}
		}
		form.Set("username", cfg.Username)
		form.Set("password", cfg.Password)
	case GrantInstalledClient:
		deviceID := cfg.DeviceID
		if deviceID == "" {
			deviceID = randomDeviceID()
		}
		form.Set("device_id", deviceID)
	case GrantClientCredentials:
	default:
		return nil, &rederrors.ConfigError{Field: "Grant", Message: "unknown grant type " + grant}
	}

	skew := cfg.RefreshSkew
	if skew <= 0 {
		skew = DefaultRefreshSkew
	}

	return &Authenticator{
		client:    httpClient,
		userAgent: cfg.UserAgent,
		tokenURL:  tokenURL,
		clientID:  cfg.ClientID,
		secret:    cfg.ClientSecret,
		form:      form,
		grant:     grant,
		skew:      skew,
		policy:    cfg.Retry.normalize(),
		logger:    cfg.Logger,
	}, nil
}

// randomDeviceID generates a unique installation id for the installed-app
// grant. Reddit wants 20-30 characters.
func randomDeviceID() string {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "DO_NOT_TRACK_THIS_DEVICE"
	}
	return hex.EncodeToString(buf[:])
}

// Token returns a currently valid access token, refreshing synchronously if
// the cached credential is expired or within the refresh skew of expiry.
// Concurrent callers share a single refresh.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	cred := a.cred
	a.mu.Unlock()
	if cred != nil && !cred.ExpiresWithin(a.skew) {
		return cred.AccessToken, nil
	}

	v, err, _ := a.group.Do("token", func() (any, error) {
		// Another caller may have finished a refresh while we queued.
		a.mu.Lock()
		cur := a.cred
		a.mu.Unlock()
		if cur != nil && !cur.ExpiresWithin(a.skew) {
			return cur, nil
		}
		fresh, err := a.exchange(ctx)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.cred = fresh
		a.mu.Unlock()
		if a.logger != nil {
			a.logger.Debug("refreshed access token",
				"grant", a.grant,
				"expires_at", fresh.ExpiresAt)
		}
		return fresh, nil
	})
	if err != nil {
		return "", err
	}
	return v.(*Credential).AccessToken, nil
}

// Current returns the cached credential, or nil if none is held.
func (a *Authenticator) Current() *Credential {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cred
}

// Invalidate drops the cached credential if it still carries the given
// token, forcing the next Token call to refresh. Used after a 401.
func (a *Authenticator) Invalidate(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cred != nil && a.cred.AccessToken == token {
		a.cred = nil
	}
}

// exchange runs the token request under the retry policy. Invalid-credential
// failures are terminal; network and 5xx failures are retried.
func (a *Authenticator) exchange(ctx context.Context) (*Credential, error) {
	for attempt := 0; ; attempt++ {
		cred, err := a.requestToken(ctx)
		if err == nil {
			return cred, nil
		}

		var authErr *rederrors.AuthError
		if errors.As(err, &authErr) && authErr.Reason != rederrors.AuthNetworkFailure {
			return nil, err
		}
		if a.policy.Exhausted(attempt) {
			return nil, err
		}
		if a.logger != nil {
			a.logger.Debug("token exchange failed, retrying",
				"attempt", attempt+1,
				"err", err)
		}
		if serr := Sleep(ctx, a.policy.Backoff(attempt)); serr != nil {
			return nil, &rederrors.AuthError{Reason: rederrors.AuthNetworkFailure, Err: serr}
		}
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// requestToken performs one round trip to the token endpoint.
func (a *Authenticator) requestToken(ctx context.Context) (*Credential, error) {
	data := a.form.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL.String(), strings.NewReader(data))
	if err != nil {
		return nil, &rederrors.AuthError{Reason: rederrors.AuthNetworkFailure, Err: err}
	}

	// The installed-app flow authenticates with an empty secret.
	req.SetBasicAuth(a.clientID, a.secret)
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &rederrors.AuthError{Reason: rederrors.AuthNetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &rederrors.AuthError{
			Reason:     rederrors.AuthNetworkFailure,
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		reason := rederrors.AuthInvalidCredentials
		if resp.StatusCode >= 500 {
			reason = rederrors.AuthNetworkFailure
		}
		return nil, &rederrors.AuthError{
			Reason:     reason,
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
		}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(bodyBytes, &tokenResp); err != nil {
		return nil, &rederrors.AuthError{
			Reason:     rederrors.AuthInvalidCredentials,
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
			Err:        err,
		}
	}

	// Reddit reports credential rejections for the password grant as 200
	// with an error field in the body.
	if tokenResp.AccessToken == "" {
		return nil, &rederrors.AuthError{
			Reason:     rederrors.AuthInvalidCredentials,
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
			Err:        fmt.Errorf("access token was empty in response"),
		}
	}

	expiresIn := tokenResp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	return &Credential{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		Scope:       tokenResp.Scope,
		Grant:       a.grant,
		ExpiresAt:   time.Now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}
