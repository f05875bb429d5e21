package cache

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/cespare/xxhash/v2"
)

// Key identifies a cache entry by method and normalized URL. The platform
// request-matching rules of the original worker model are replaced by this
// explicit, testable identity: two requests map to the same entry exactly
// when their methods and normalized URLs are equal.
type Key struct {
	Method string
	URL    string
}

// NewKey builds a Key for the given request. The URL is normalized to
// path?query form (same-origin interception never needs scheme or host)
// and any fragment is dropped.
func NewKey(r *http.Request) Key {
	return Key{
		Method: r.Method,
		URL:    normalizeURL(r.URL),
	}
}

// normalizeURL reduces a URL to its path and raw query. An empty path
// becomes "/" so that "GET http://host" and "GET http://host/" collide.
func normalizeURL(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery == "" {
		return path
	}
	return path + "?" + u.RawQuery
}

// String returns the human-readable form, used in logs.
func (k Key) String() string {
	return k.Method + " " + k.URL
}

// Hash returns a stable 64-bit digest of the key, used by backends that
// need a compact fixed-width entry address.
func (k Key) Hash() string {
	d := xxhash.New()
	_, _ = d.WriteString(k.Method)
	_, _ = d.WriteString(" ")
	_, _ = d.WriteString(k.URL)
	return fmt.Sprintf("%016x", d.Sum64())
}
