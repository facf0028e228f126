package wire

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// PresenceChannelSuffix marks a channel as a presence channel; the
// server names the companion presence channel for "room" as
// "room-pnpres". An envelope arriving on such a channel is reported
// as Presence regardless of its numeric kind tag.
const PresenceChannelSuffix = "-pnpres"

// Envelope is the literal shape of one element of a subscribe
// response's "m" array, named after the wire's single-letter field
// names.
type Envelope struct {
	E json.RawMessage `json:"e"`
	B string          `json:"b"`
	C string          `json:"c"`
	D json.RawMessage `json:"d"`
	U json.RawMessage `json:"u"`
	P struct {
		T string `json:"t"`
		R uint32 `json:"r"`
	} `json:"p"`
	I string `json:"i"`
	K string `json:"k"`
	F uint32 `json:"f"`
}

// Response is the literal shape of a subscribe long-poll body: the
// next cursor plus the batch of envelopes delivered since the last
// one.
type Response struct {
	T struct {
		T string `json:"t"`
		R uint32 `json:"r"`
	} `json:"t"`
	M []Envelope `json:"m"`
}

// Kind returns the numeric kind tag encoded in e.E and whether it is
// one of the four known tags (0-3); any other value comes back with
// known=false. It does not account for the presence override;
// FromEnvelope combines this with the envelope's channel name.
func (e Envelope) Kind() (kind int, known bool) {
	if len(e.E) == 0 {
		return 0, true // absent "e" defaults to Publish, tag 0
	}
	var n int
	if err := json.Unmarshal(e.E, &n); err != nil {
		return 0, false
	}
	switch n {
	case 0, 1, 2, 3:
		return n, true
	default:
		return n, false
	}
}

// IsPresence reports whether the envelope's channel carries the
// presence suffix, overriding whatever numeric kind tag it arrived
// with.
func (e Envelope) IsPresence() bool {
	return strings.HasSuffix(e.C, PresenceChannelSuffix)
}

// RoutingKey returns the key the loop should use to look up
// listeners for this envelope: the route if present, otherwise the
// channel.
func (e Envelope) RoutingKey() string {
	if e.B != "" {
		return e.B
	}
	return e.C
}

// BuildSubscribeURL constructs the literal subscribe long-poll URL
// for the given channel set and cursor.
func BuildSubscribeURL(origin, subKey string, channels []string, tt Timetoken) string {
	t := tt.T
	if t == "" {
		t = "0"
	}
	return fmt.Sprintf(
		"%s/v2/subscribe/%s/%s/0?tt=%s&tr=%d",
		originWithScheme(origin), subKey, EncodeChannelList(channels), t, tt.R,
	)
}

// DecodeSubscribeResponse parses a subscribe long-poll response body.
// A body that is not valid UTF-8, or a missing "c" field on any
// envelope, is treated as a decoding failure; "c" is required even
// when a route is present.
func DecodeSubscribeResponse(body []byte) (Response, error) {
	if !utf8.Valid(body) {
		return Response{}, fmt.Errorf("wire: decode subscribe response: body is not valid UTF-8")
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{}, fmt.Errorf("wire: decode subscribe response: %w", err)
	}
	for i, m := range resp.M {
		if m.C == "" {
			return Response{}, fmt.Errorf("wire: decode subscribe response: envelope %d missing channel", i)
		}
	}
	return resp, nil
}

// NextTimetoken extracts the cursor a caller should store for the
// next subscribe request.
func (r Response) NextTimetoken() Timetoken {
	return Timetoken{T: r.T.T, R: r.T.R}
}
