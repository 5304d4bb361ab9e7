// Package httpclient provides an outbound HTTP client with SSRF
// protection for the CRM and time-tracking API clients.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/campusops/facultyhours/errors"
)

// Client wraps http.Client with scheme allow-listing, private IP
// blocking at dial time, and a bounded redirect policy.
type Client struct {
	*http.Client
	allowedSchemes []string
	blockPrivateIP bool
	maxRedirects   int
}

// Options customizes protection behavior. The zero value gives the
// defaults: https+http, private IPs blocked, 10 redirects.
type Options struct {
	AllowedSchemes  []string
	MaxRedirects    int
	AllowPrivateIPs bool // for talking to in-network services (the campus database APIs)
}

// New creates an HTTP client with SSRF protection.
func New(timeout time.Duration, opts Options) *Client {
	allowedSchemes := opts.AllowedSchemes
	if allowedSchemes == nil {
		allowedSchemes = []string{"http", "https"}
	}
	maxRedirects := opts.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = 10
	}

	c := &Client{
		Client:         &http.Client{Timeout: timeout},
		allowedSchemes: allowedSchemes,
		blockPrivateIP: !opts.AllowPrivateIPs,
		maxRedirects:   maxRedirects,
	}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		if err := c.ValidateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	if c.blockPrivateIP {
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}
		c.Transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, _, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, errors.Wrap(err, "invalid address")
				}
				ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
				if err != nil {
					return nil, errors.Wrapf(err, "failed to resolve host %q", host)
				}
				// Re-check after DNS resolution so rebinding cannot
				// smuggle a private address past ValidateURL.
				for _, ip := range ips {
					if isPrivateIP(ip) {
						return nil, errors.Newf("private IP address blocked: %s", ip)
					}
				}
				return dialer.DialContext(ctx, network, addr)
			},
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	return c
}

// ValidateURL validates a URL before a request is made with it.
func (c *Client) ValidateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range c.allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes)
	}

	if u.User != nil {
		// Credential injection or URL confusion: http://evil.com@localhost/
		return errors.New("URL userinfo not allowed")
	}

	hostname := u.Hostname()
	if hostname == "" {
		return errors.New("URL missing hostname")
	}

	if c.blockPrivateIP {
		if isLocalhost(hostname) {
			return errors.New("localhost access blocked")
		}
		if ip := net.ParseIP(hostname); ip != nil && isPrivateIP(ip) {
			return errors.Newf("private IP address blocked: %s", hostname)
		}
	}

	return nil
}

func isLocalhost(hostname string) bool {
	h := strings.ToLower(hostname)
	return h == "localhost" || h == "localhost.localdomain" ||
		strings.HasSuffix(h, ".localhost")
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
