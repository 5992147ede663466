// Package query extracts key/value parameters from a context address.
package query

import (
	"net/url"
	"regexp"
	"strings"
)

var pathPair = regexp.MustCompile(`\w+=\w+`)

var sanitizer = strings.NewReplacer(
	"\x00", "\uFFFD",
	"'", "\uFFFD",
	`"`, "\uFFFD",
	"<", "\uFFFD",
	`\`, "\uFFFD",
)

// Params returns the query parameters of rawURL together with key=value
// pairs embedded in its path (ad-server style ";a=b;c=d" segments). Query
// pairs win over path pairs and earlier pairs win over later ones. Values
// are URL-decoded where possible and have quote, angle, backslash and NUL
// characters replaced with U+FFFD.
func Params(rawURL string) map[string]string {
	out := make(map[string]string)
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return out
	}
	pairs := strings.Split(u.RawQuery, "&")
	pairs = append(pairs, pathPair.FindAllString(u.EscapedPath(), -1)...)
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		if _, seen := out[key]; seen {
			continue
		}
		out[key] = sanitizer.Replace(unescape(value))
	}
	return out
}

func unescape(v string) string {
	if decoded, err := url.QueryUnescape(v); err == nil {
		return decoded
	}
	return v
}
