package wire

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Timetoken is the wire representation of the opaque cursor the
// service hands back on publish and subscribe responses: a decimal
// digit string plus a region hint. hubclient's exported Timetoken
// type is built from this one; wire itself has no notion of ordering
// or monotonicity, only of parsing the pair off the wire.
type Timetoken struct {
	T string
	R uint32
}

// BuildPublishURL constructs the literal publish URL. channel and
// jsonPayload are percent-encoded with the non-alphanumeric rule;
// jsonPayload must already be the JSON-stringified form of the
// message (a bare string payload like "Hi!" is stringified to
// `"Hi!"` before this function ever sees it, so that the quotes
// themselves get encoded to %22 as the service expects).
func BuildPublishURL(origin, pubKey, subKey, channel, jsonPayload string) string {
	return fmt.Sprintf(
		"%s/publish/%s/%s/0/%s/0/%s",
		originWithScheme(origin), pubKey, subKey,
		PercentEncode(channel),
		PercentEncode(jsonPayload),
	)
}

// MarshalPayload JSON-encodes v the way a publish call must before
// building the URL. Callers that already hold a JSON string may skip
// this and pass it to BuildPublishURL directly.
func MarshalPayload(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("wire: marshal publish payload: %w", err)
	}
	return string(b), nil
}

// publishResponse models the literal three-element JSON array the
// publish endpoint returns: [status, message, timetoken].
type publishResponse [3]json.RawMessage

// DecodePublishResponse parses the publish endpoint's JSON array body
// and extracts the timetoken at index 2. The status and message
// fields (indices 0 and 1) are not validated; a successful HTTP
// response is treated as success per the specification this package
// implements.
func DecodePublishResponse(body []byte) (Timetoken, error) {
	if !utf8.Valid(body) {
		return Timetoken{}, fmt.Errorf("wire: decode publish response: body is not valid UTF-8")
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Timetoken{}, fmt.Errorf("wire: decode publish response: %w", err)
	}
	if len(raw) < 3 {
		return Timetoken{}, fmt.Errorf("wire: decode publish response: expected 3 elements, got %d", len(raw))
	}

	var tt string
	if err := json.Unmarshal(raw[2], &tt); err != nil {
		return Timetoken{}, fmt.Errorf("wire: decode publish response: timetoken element: %w", err)
	}
	return Timetoken{T: tt, R: 0}, nil
}
