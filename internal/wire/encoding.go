// Package wire implements the on-the-wire shape of the publish and
// subscribe endpoints: URL construction, percent-encoding, and JSON
// envelope decoding. Nothing in this package blocks or performs I/O;
// it only turns values into URLs and bytes into values.
package wire

import (
	"strings"
)

// commaEscape is the literal three-character sequence the server
// expects between percent-encoded channel names in a subscribe URL.
// It is not produced by encoding a comma through the normal table
// below; the comma itself is never part of a channel name.
const commaEscape = "%2C"

// unreservedByte reports whether b may appear unescaped. Everything
// else — not just the RFC 3986 reserved set — is percent-encoded,
// matching the "percent-encode every non-alphanumeric byte" rule the
// service expects on both channel names and publish payloads.
func unreservedByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	}
	return false
}

const upperhex = "0123456789ABCDEF"

// PercentEncode escapes every non-alphanumeric byte of s as %XX. This
// is stricter than url.QueryEscape (which leaves several punctuation
// bytes and substitutes '+' for space) and matches what the service's
// publish/subscribe endpoints require of channel names and payloads.
func PercentEncode(s string) string {
	var needsEscape int
	for i := 0; i < len(s); i++ {
		if !unreservedByte(s[i]) {
			needsEscape++
		}
	}
	if needsEscape == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + needsEscape*2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreservedByte(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

// originWithScheme returns origin prefixed with "https://" unless it
// already names a scheme. Production origins are bare host:port
// values ("ps.pndsn.com"); tests pointed at an httptest.Server pass
// an "http://127.0.0.1:port" origin so requests actually reach a
// plaintext listener instead of failing a TLS handshake against it.
func originWithScheme(origin string) string {
	if strings.HasPrefix(origin, "http://") || strings.HasPrefix(origin, "https://") {
		return origin
	}
	return "https://" + origin
}

// EncodeChannelList percent-encodes each channel name and joins them
// with the literal escaped-comma sequence the server treats as a
// single path segment. The order of names is preserved as given; the
// caller (the subscribe loop) is responsible for choosing a stable
// iteration order if that matters to it.
func EncodeChannelList(channels []string) string {
	encoded := make([]string, len(channels))
	for i, c := range channels {
		encoded[i] = PercentEncode(c)
	}
	return strings.Join(encoded, commaEscape)
}
