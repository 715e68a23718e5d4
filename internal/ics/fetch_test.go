package ics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCalendarServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cal.ics":
			w.Header().Set("Content-Type", MIMEType)
			_, _ = w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
		case "/huge.ics":
			w.Header().Set("Content-Type", MIMEType)
			_, _ = w.Write(bytes.Repeat([]byte("X"), 2*MaxFetchBytes))
		case "/exact.ics":
			_, _ = w.Write(bytes.Repeat([]byte("X"), MaxFetchBytes))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestFetcher_Fetch(t *testing.T) {
	ts := newCalendarServer(t)
	f := NewFetcher(0, AllowPrivateNetworks())

	body, err := f.Fetch(context.Background(), ts.URL+"/cal.ics?token=secret")
	require.NoError(t, err)
	assert.Contains(t, string(body), "BEGIN:VCALENDAR")

	_, err = f.Fetch(context.Background(), ts.URL+"/missing.ics")
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), "file:///etc/passwd")
	assert.Error(t, err)
}

func TestFetcher_BodyLimit(t *testing.T) {
	ts := newCalendarServer(t)
	f := NewFetcher(0, AllowPrivateNetworks())

	_, err := f.Fetch(context.Background(), ts.URL+"/huge.ics")
	assert.ErrorContains(t, err, "exceeds")

	body, err := f.Fetch(context.Background(), ts.URL+"/exact.ics")
	require.NoError(t, err)
	assert.Len(t, body, MaxFetchBytes)
}

func TestFetcher_BlocksNonPublicHosts(t *testing.T) {
	ts := newCalendarServer(t)
	f := NewFetcher(0)

	_, err := f.Fetch(context.Background(), ts.URL+"/cal.ics")
	assert.ErrorIs(t, err, ErrBlockedAddress)

	_, err = f.Fetch(context.Background(), "http://169.254.169.254/latest/meta-data")
	assert.ErrorIs(t, err, ErrBlockedAddress)
}

func TestIsPublic(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"8.8.8.8", true},
		{"2606:4700:4700::1111", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fc00::1", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"224.0.0.1", false},
		{"::ffff:127.0.0.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, isPublic(netip.MustParseAddr(tt.addr)))
		})
	}
}

func TestGuardPublic(t *testing.T) {
	assert.NoError(t, guardPublic("tcp4", "93.184.216.34:443", nil))
	assert.ErrorIs(t, guardPublic("tcp4", "127.0.0.1:80", nil), ErrBlockedAddress)
	assert.ErrorIs(t, guardPublic("tcp6", "[::1]:80", nil), ErrBlockedAddress)
	assert.ErrorIs(t, guardPublic("tcp", "garbage", nil), ErrBlockedAddress)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/feed.ics", redactURL("https://user:pw@example.com/feed.ics?token=abc#x"))
	assert.Equal(t, "<invalid-url>", redactURL("http://[::1"))
}
