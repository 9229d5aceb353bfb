// Package netclient is the HTTP layer shared by the pipeline: JSON POST
// requests and a redirect-following binary downloader.
//
// URLs in returned errors have their query string and userinfo removed.
package netclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
)

// DefaultMaxRedirects bounds the redirect chain followed by Download.
const DefaultMaxRedirects = 10

// maxErrorBody caps how much of a failed response body is kept in a StatusError.
const maxErrorBody = 2048

var ErrTooManyRedirects = errors.New("netclient: too many redirects")

// StatusError is returned when a server answers with an unexpected status.
// URL is redacted.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
}

// Client issues requests with a per-request timeout. Redirects are never
// followed automatically; Download walks them itself so it can bound and
// validate each hop.
type Client struct {
	http         *req.Client
	maxRedirects int
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	c := req.C().
		SetRedirectPolicy(req.NoRedirectPolicy()).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		c.SetUserAgent(opts.UserAgent)
	}
	return &Client{http: c, maxRedirects: opts.MaxRedirects}
}

// PostJSON sends body as JSON to url, authenticating with bearer when set,
// and returns the raw 200 response body.
func (c *Client) PostJSON(ctx context.Context, url, bearer string, body any) ([]byte, error) {
	r := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetBodyJsonMarshal(body)
	if bearer != "" {
		r.SetBearerAuthToken(bearer)
	}
	resp, err := r.Post(url)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", RedactURL(url), RedactError(err))
	}
	data := resp.Bytes()
	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(http.MethodPost, url, resp.StatusCode, data)
	}
	return data, nil
}

// Download streams the body of rawURL into w, following 301/302/307/308
// redirects up to the client's hop limit. Any other non-200 status fails.
// headers are sent only to rawURL's host, so credentials are not forwarded
// to a redirect target elsewhere. It returns the number of bytes written.
func (c *Client) Download(ctx context.Context, rawURL string, headers map[string]string, w io.Writer) (int64, error) {
	origin, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("download %s: parse url: %w", RedactURL(rawURL), RedactError(err))
	}
	current := rawURL
	for hop := 0; ; hop++ {
		r := c.http.R().
			SetContext(ctx).
			DisableAutoReadResponse()
		if sameHost(origin, current) {
			r.SetHeaders(headers)
		}
		resp, err := r.Get(current)
		if err != nil {
			return 0, fmt.Errorf("download %s: %w", RedactURL(current), RedactError(err))
		}

		switch resp.StatusCode {
		case http.StatusOK:
			n, err := io.Copy(w, resp.Body)
			resp.Body.Close()
			if err != nil {
				return n, fmt.Errorf("download %s: read body: %w", RedactURL(current), err)
			}
			return n, nil

		case http.StatusMovedPermanently, http.StatusFound,
			http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
			loc := resp.Header.Get("Location")
			drain(resp.Body)
			if loc == "" {
				return 0, fmt.Errorf("download %s: redirect %d without Location", RedactURL(current), resp.StatusCode)
			}
			if hop >= c.maxRedirects {
				return 0, fmt.Errorf("download %s: %w (limit %d)", RedactURL(rawURL), ErrTooManyRedirects, c.maxRedirects)
			}
			next, err := resolve(current, loc)
			if err != nil {
				return 0, fmt.Errorf("download %s: %w", RedactURL(current), err)
			}
			current = next

		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			return 0, newStatusError(http.MethodGet, current, resp.StatusCode, body)
		}
	}
}

// RedactURL strips the query string, fragment and userinfo from raw so it
// can be logged. Unparseable input is replaced entirely.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// RedactError redacts the URL carried by a *url.Error inside err, in place.
func RedactError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = RedactURL(ue.URL)
	}
	return err
}

func sameHost(origin *url.URL, raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && strings.EqualFold(u.Host, origin.Host) && u.Scheme == origin.Scheme
}

func resolve(base, loc string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	l, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("parse redirect location %q: %w", loc, err)
	}
	return b.ResolveReference(l).String(), nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	body.Close()
}

func newStatusError(method, url string, code int, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Method: method, URL: RedactURL(url), StatusCode: code, Body: string(body)}
}
