// Package urlutil canonicalizes job-posting URLs before they are fetched.
//
// Some job portals render individual postings as client-side overlays on a
// search page and encode the target posting only in the hash fragment. A
// server-side GET of such a URL returns the search page, not the posting, so
// those URLs are rewritten to the portal's direct-job path. Fragments are
// never transmitted to a server, so for every other host they are simply
// stripped.
package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

// hostRule rewrites a parsed URL for one known portal. It returns the
// canonical form and true, or "" and false when the URL does not match the
// pattern the rule handles.
type hostRule func(u *url.URL) (string, bool)

var numericFragment = regexp.MustCompile(`^\d+$`)

// hostRules is keyed by hostname with any "www." prefix removed. Adding
// support for another portal means adding one entry here.
var hostRules = map[string]hostRule{
	"karriere.at": karriereRule,
}

// karriereRule turns search-overlay URLs like
// https://www.karriere.at/jobs/software-engineer/wien#7738505 into the
// direct posting URL https://www.karriere.at/jobs/7738505.
func karriereRule(u *url.URL) (string, bool) {
	if !numericFragment.MatchString(u.Fragment) {
		return "", false
	}
	rewritten := *u
	rewritten.Path = "/jobs/" + u.Fragment
	rewritten.Fragment = ""
	rewritten.RawQuery = ""
	return rewritten.String(), true
}

// Normalize returns the canonical form of raw. It never fails: anything that
// does not parse as an absolute URL is returned unchanged.
func Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	if rule, ok := hostRules[normalizeHost(u.Hostname())]; ok {
		if canonical, matched := rule(u); matched {
			return canonical
		}
	}

	if u.Fragment != "" {
		u.Fragment = ""
		return u.String()
	}
	return raw
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host
}
