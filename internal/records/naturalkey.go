package records

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// NaturalKey identifies a posting for deduplication. Postings with the same
// normalized URL share a key; a posting without a URL falls back to its id.
//
// Normalization trims whitespace, lower-cases the scheme and host, converts
// internationalized hosts to their ASCII form, and drops the fragment and a
// trailing slash. Query strings are kept: they often carry the job id.
func (p Posting) NaturalKey() string {
	raw := strings.TrimSpace(p.URL)
	if raw == "" {
		return "id:" + p.ID
	}
	return NormalizeURL(raw)
}

// NormalizeURL applies the NaturalKey normalization to a single URL. Strings
// that do not parse as absolute URLs are returned trimmed but otherwise as is.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	host := strings.ToLower(u.Hostname())
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	if port := u.Port(); port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	// RawPath keeps %2F distinct from /; url.URL drops it if it stops
	// matching Path.
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")
	return u.String()
}
