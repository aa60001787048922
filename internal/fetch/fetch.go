package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"nook/internal/config"
	"nook/internal/core"
)

// Response is the outcome of a bounded outbound fetch.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Client issues outbound fetches with mandatory timeouts, a byte-cap
// streaming variant, and a private-network target guard. The guard runs in
// the dialer's Control hook, after DNS resolution, so a hostname cannot
// rebind past it.
type Client struct {
	http          *http.Client
	userAgent     string
	timeout       time.Duration
	mirrorTimeout time.Duration
}

// New creates a fetch client from configuration.
func New(cfg config.Fetch) *Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if !cfg.AllowPrivateTargets {
		dialer.Control = func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if ip := net.ParseIP(host); ip != nil && !publiclyRoutable(ip) {
				return core.ErrUnsafeTarget
			}
			return nil
		}
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		http:          &http.Client{Transport: transport},
		userAgent:     cfg.UserAgent,
		timeout:       cfg.Timeout,
		mirrorTimeout: cfg.MirrorTimeout,
	}
}

// Timeout returns the default per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// MirrorTimeout returns the shorter timeout used for mirror fan-out fetches.
func (c *Client) MirrorTimeout() time.Duration { return c.mirrorTimeout }

// Get fetches rawURL with the client's default timeout and no explicit byte
// cap. Redirects are followed.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, rawURL, nil, c.timeout, 0)
}

// GetWithTimeout fetches rawURL with a caller-supplied timeout.
func (c *Client) GetWithTimeout(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	return c.do(ctx, rawURL, nil, timeout, 0)
}

// GetWithHeaders fetches rawURL with extra request headers.
func (c *Client) GetWithHeaders(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return c.do(ctx, rawURL, headers, c.timeout, 0)
}

// GetLimited streams rawURL and aborts with core.ErrContentTooLarge once
// maxBytes have been read.
func (c *Client) GetLimited(ctx context.Context, rawURL string, maxBytes int64) (*Response, error) {
	return c.do(ctx, rawURL, nil, c.timeout, maxBytes)
}

func (c *Client) do(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration, maxBytes int64) (*Response, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	var body []byte
	if maxBytes > 0 {
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
		if err == nil && int64(len(body)) > maxBytes {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, core.ErrContentTooLarge)
		}
	} else {
		body, err = io.ReadAll(resp.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", rawURL, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     resp.Header,
	}, nil
}

// publiclyRoutable reports whether ip is a legitimate outbound target.
func publiclyRoutable(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() ||
		ip.IsMulticast())
}
