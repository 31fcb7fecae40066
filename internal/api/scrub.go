package api

import (
	"net/url"
	"strings"
)

var sensitiveParams = map[string]bool{
	"token":        true,
	"access_token": true,
	"password":     true,
	"otp":          true,
	"code":         true,
	"secret":       true,
}

// scrubURL redacts sensitive query parameters from a URL for safe logging.
// Returns a safe placeholder if the URL cannot be parsed.
func scrubURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[unparseable URL]"
	}
	u.User = nil

	query := u.Query()
	modified := false
	for key := range query {
		if sensitiveParams[strings.ToLower(key)] {
			query.Set(key, "[REDACTED]")
			modified = true
		}
	}
	if modified {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
