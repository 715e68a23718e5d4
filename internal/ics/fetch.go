package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	appLog "spousedetails/internal/log"
)

// MaxFetchBytes caps the size of a fetched calendar.
const MaxFetchBytes = 1 << 20

// ErrBlockedAddress is returned when a calendar URL resolves to a loopback,
// private, link-local or otherwise non-public address.
var ErrBlockedAddress = errors.New("non-public address")

var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// Fetcher downloads calendar files from http(s) URLs for import.
type Fetcher struct {
	client       *resty.Client
	allowPrivate bool
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// AllowPrivateNetworks lets the Fetcher dial non-public addresses.
func AllowPrivateNetworks() FetcherOption {
	return func(f *Fetcher) { f.allowPrivate = true }
}

// NewFetcher creates a Fetcher with the given request timeout (zero means
// 15s). Every dial, including those made for redirects, is checked against
// the resolved address so only public hosts are reachable.
func NewFetcher(timeout time.Duration, opts ...FetcherOption) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	f := &Fetcher{}
	for _, opt := range opts {
		opt(f)
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !f.allowPrivate {
		dialer.Control = guardPublic
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	f.client = resty.New().
		SetTransport(transport).
		SetTimeout(timeout).
		SetHeader("Accept", "text/calendar, */*;q=0.5").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return f
}

// Fetch returns the body at rawURL. Only http and https are accepted and
// bodies larger than MaxFetchBytes are rejected without being buffered.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("unsupported calendar url %q", redactURL(rawURL))
	}

	appLog.Info("ics fetch start", "url", redactURL(rawURL))

	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("ics fetch: %w", err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.IsError() {
		return nil, errors.New("ics fetch: " + resp.Status())
	}

	body, err := io.ReadAll(io.LimitReader(raw, MaxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("ics fetch: read body: %w", err)
	}
	if len(body) > MaxFetchBytes {
		return nil, fmt.Errorf("ics fetch: body exceeds %d bytes", MaxFetchBytes)
	}

	appLog.Info("ics fetch success", "url", redactURL(rawURL), "status", resp.StatusCode(), "bytes", len(body))
	return body, nil
}

// guardPublic is a net.Dialer Control hook. address is already resolved.
func guardPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || !isPublic(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case !ip.IsValid(),
		ip.IsUnspecified(),
		ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(),
		ip.IsMulticast(),
		cgnat.Contains(ip):
		return false
	}
	return true
}

// redactURL drops query and userinfo, which often carry private feed
// tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid-url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
