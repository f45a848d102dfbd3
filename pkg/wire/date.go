package wire

import (
	"strings"
	"time"
)

// httpDateLayout matches the RFC 7231 preferred format, e.g.
// "Sun, 06 Nov 1994 08:49:37 GMT" — the only form original_source emitted or
// accepted (it formatted Expires/Date with strftime("%a, %d %b %Y %H:%M:%S GMT")).
const httpDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// ParseHTTPDate parses an HTTP-date header value (Expires, Date) as UTC. The
// trailing zone marker may be "GMT" or "UTC". Returns an error if the value
// does not otherwise match the RFC 7231 IMF-fixdate form.
func ParseHTTPDate(value string) (time.Time, error) {
	if strings.HasSuffix(value, " UTC") {
		value = strings.TrimSuffix(value, " UTC") + " GMT"
	}
	return time.Parse(httpDateLayout, value)
}

// FormatHTTPDate renders t as an RFC 7231 IMF-fixdate string in UTC.
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format(httpDateLayout)
}
