// Package courtreserve is a minimal client for the CourtReserve member
// portal: login, availability reads and the two-step reservation flow.
package courtreserve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/courtsniper/internal/internaltypes"
	"github.com/example/courtsniper/internal/venue"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// Client talks to one venue on behalf of one account. Its cookie jar is
// the account's session.
type Client struct {
	hc    *http.Client
	venue venue.Profile
	log   *zap.Logger
}

func New(p venue.Profile, jar http.CookieJar, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		hc:    &http.Client{Timeout: timeout, Jar: jar},
		venue: p,
		log:   log,
	}
}

func (c *Client) Jar() http.CookieJar { return c.hc.Jar }

func (c *Client) Venue() venue.Profile { return c.venue }

// Sites lists the origins whose cookies make up the session.
func (c *Client) Sites() []string {
	e := c.venue.Endpoints
	return []string{e.App, e.API, e.Reservations}
}

func (c *Client) loginPage() string {
	return fmt.Sprintf("%s/Online/Account/LogIn/%s", c.venue.Endpoints.App, c.venue.OrgID)
}

type loginRequest struct {
	IsApiCall       bool   `json:"IsApiCall"`
	UserNameOrEmail string `json:"UserNameOrEmail"`
	Password        string `json:"Password"`
}

type loginResponse struct {
	IsValid bool   `json:"IsValid"`
	Message string `json:"Message"`
}

// Login performs the portal handshake. Rejected credentials yield
// ErrFatalAuth.
func (c *Client) Login(ctx context.Context, email, password string) error {
	lp := c.loginPage()
	if _, _, err := c.do(ctx, http.MethodGet, lp, nil, nil, true); err != nil {
		return fmt.Errorf("login page: %w", err)
	}
	jb, err := json.Marshal(loginRequest{IsApiCall: true, UserNameOrEmail: email, Password: password})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/Online/Account/Login?id=%s", c.venue.Endpoints.App, url.QueryEscape(c.venue.OrgID))
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Referer", lp)
	hdr.Set("reactsubmit", "true")
	status, body, err := c.do(ctx, http.MethodPost, u, hdr, bytes.NewReader(jb), true)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	var res loginResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("login response (status=%d): %w", status, internaltypes.ErrRecoverableProbe)
	}
	if !res.IsValid {
		msg := res.Message
		if msg == "" {
			msg = "credentials rejected"
		}
		return fmt.Errorf("login %s: %s: %w", email, msg, internaltypes.ErrFatalAuth)
	}
	c.log.Debug("logged in", zap.String("actor", email))
	return nil
}

// Ping fetches the login page to keep the session warm. A redirect back to
// the login form counts as a stale session.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodGet, c.loginPage(), nil, nil, true)
	return err
}

// do issues a request and classifies failures into the probe taxonomy.
// Unless loginOK is set, landing on the login page means the session is
// no longer authenticated.
func (c *Client) do(ctx context.Context, method, rawURL string, hdr http.Header, body io.Reader, loginOK bool) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, classifyTransport(ctx, err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, classifyTransport(ctx, err)
	}

	c.log.Debug("courtreserve request",
		zap.String("method", method),
		zap.String("url", rawURL),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return res.StatusCode, b, fmt.Errorf("%s %s (status=%d): %w", method, req.URL.Path, res.StatusCode, internaltypes.ErrSessionStale)
	case !loginOK && isLoginPage(res.Request.URL):
		return res.StatusCode, b, fmt.Errorf("%s %s redirected to login: %w", method, req.URL.Path, internaltypes.ErrSessionStale)
	case res.StatusCode >= 400:
		return res.StatusCode, b, fmt.Errorf("%s %s (status=%d): %w", method, req.URL.Path, res.StatusCode, internaltypes.ErrRecoverableProbe)
	}
	return res.StatusCode, b, nil
}

func isLoginPage(u *url.URL) bool {
	if u == nil {
		return false
	}
	return strings.Contains(strings.ToLower(u.Path), "/account/login")
}

func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return fmt.Errorf("%v: %w", err, internaltypes.ErrSessionStale)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("timeout: %v: %w", err, internaltypes.ErrRecoverableProbe)
	}
	return fmt.Errorf("%v: %w", err, internaltypes.ErrRecoverableProbe)
}

func decodeJSON(path string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %v: %w", path, err, internaltypes.ErrRecoverableProbe)
	}
	return nil
}

// flexInt accepts both 7 and "7".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(bytes.Trim(b, `"`), &n); err != nil {
		return err
	}
	i, err := n.Int64()
	if err != nil {
		return err
	}
	*f = flexInt(i)
	return nil
}
