package web

import (
	"net/url"
	"strings"
)

// SafeNext returns next when it is a path on this site, else fallback.
// Absolute URLs, scheme-relative "//host" forms and backslash tricks that
// some browsers normalise to "//" are all refused.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return fallback
	}
	if strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	return next
}
