package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gritvcs/grit/pkg/errs"
)

// Options tunes a Client. Zero values get sensible defaults.
type Options struct {
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	// MaxAttempts bounds discovery retries. Data transfers are never
	// retried; a failed transfer is reported, not replayed.
	MaxAttempts int
	// Token is a bearer token applied to every request.
	Token string
	// TokenPrompt, when set, is asked for a token once after the first
	// 401 if Token was empty.
	TokenPrompt func() (string, error)
	Logger      *zap.Logger
}

// Client speaks the smart HTTP protocol against one remote URL.
type Client struct {
	base string
	hc   *http.Client
	opts Options
	log  *zap.Logger

	token    string
	prompted bool
}

// NewClient returns a client for the repository at base, e.g.
// "https://example.com/team/project.git".
func NewClient(base string, opts Options) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errs.New(errs.KindUnsupported, "remote url %q: only http(s) is supported", base)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:  strings.TrimSuffix(base, "/"),
		hc:    &http.Client{Timeout: opts.Timeout},
		opts:  opts,
		log:   log,
		token: opts.Token,
	}, nil
}

func (c *Client) applyAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// promptToken asks the configured prompt for credentials, once.
func (c *Client) promptToken() bool {
	if c.prompted || c.opts.TokenPrompt == nil {
		return false
	}
	c.prompted = true
	tok, err := c.opts.TokenPrompt()
	if err != nil || tok == "" {
		return false
	}
	c.token = tok
	return true
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.New(errs.KindAuth, "remote rejected credentials (%s)", resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return errs.New(errs.KindNotFound, "remote repository not found")
	case resp.StatusCode >= 400:
		return errs.New(errs.KindNetwork, "remote returned %s", resp.Status)
	}
	return nil
}

// Discover fetches and parses the ref advertisement for a service.
// This is the only exchange that retries: it is idempotent, while the
// pack transfers are not.
func (c *Client) Discover(ctx context.Context, service string) (*Advertisement, error) {
	adv, err := c.discoverOnce(ctx, service)
	if errs.Is(err, errs.KindAuth) && c.promptToken() {
		adv, err = c.discoverOnce(ctx, service)
	}
	return adv, err
}

func (c *Client) discoverOnce(ctx context.Context, service string) (*Advertisement, error) {
	u := fmt.Sprintf("%s/info/refs?service=%s", c.base, url.QueryEscape(service))
	c.log.Debug("discovering refs", zap.String("url", u))
	resp, err := retryDo(ctx, c.hc, c.log, c.opts.MaxAttempts, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		c.applyAuth(req)
		return req, nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, err, "discovering %s", service)
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return nil, err
	}
	want := fmt.Sprintf("application/x-%s-advertisement", service)
	if ct := resp.Header.Get("Content-Type"); ct != want {
		return nil, errs.New(errs.KindProtocol, "discovery content type %q, want %q", ct, want)
	}
	return ParseAdvertisement(resp.Body, service)
}

// post runs one data exchange. No retries: a pack transfer that died
// midway must not be blindly resent.
func (c *Client) post(ctx context.Context, service string, body []byte) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/%s", c.base, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, err, "building %s request", service)
	}
	req.Header.Set("Content-Type", fmt.Sprintf("application/x-%s-request", service))
	req.Header.Set("Accept", fmt.Sprintf("application/x-%s-result", service))
	c.applyAuth(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, err, "%s exchange", service)
	}
	if err := statusError(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// UploadPack sends a want/have request and returns the response stream:
// a NAK frame followed by pack data.
func (c *Client) UploadPack(ctx context.Context, body []byte) (io.ReadCloser, error) {
	return c.post(ctx, ServiceUploadPack, body)
}

// ReceivePack sends ref update commands plus a pack and returns the
// report-status stream.
func (c *Client) ReceivePack(ctx context.Context, body []byte) (io.ReadCloser, error) {
	return c.post(ctx, ServiceReceivePack, body)
}
