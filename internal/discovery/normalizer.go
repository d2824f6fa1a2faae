package discovery

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeURL returns the identity key of a discovered URL: scheme, "www.",
// fragment and trailing slash are dropped and the host is lower-cased ASCII.
func NormalizeURL(rawUrl string) (string, error) {
	rawUrl = strings.TrimSpace(rawUrl)
	if rawUrl == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(rawUrl, "://") {
		rawUrl = "https://" + rawUrl
	}
	u, err := url.Parse(rawUrl)
	if err != nil {
		return "", fmt.Errorf("error parsing URL: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawUrl)
	}

	p := idna.New(idna.ValidateForRegistration())
	asciiHost, err := p.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("could not convert host to ASCII: %w", err)
	}
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		asciiHost += ":" + port
	}

	key := asciiHost + strings.TrimRight(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key, nil
}

// CanonicalURL is the URL handed to the crawler: https unless the source said
// http, no fragment.
func CanonicalURL(rawUrl string) (string, error) {
	rawUrl = strings.TrimSpace(rawUrl)
	if !strings.Contains(rawUrl, "://") {
		rawUrl = "https://" + rawUrl
	}
	u, err := url.Parse(rawUrl)
	if err != nil {
		return "", fmt.Errorf("error parsing URL: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Host = strings.ToLower(u.Host)
	if u.Host != "" && u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	return u.String(), nil
}
