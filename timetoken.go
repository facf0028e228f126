package hubclient

import (
	"strconv"

	"github.com/duskline/hubclient/internal/wire"
)

// Timetoken is the opaque cursor the service returns on every publish
// and subscribe response. T is a decimal-digit string (17 digits in
// practice); R disambiguates delivery region on a subscribe response
// and is always 0 on a publish response.
type Timetoken = wire.Timetoken

// ColdStartTimetoken is the sentinel a Subscription starts from before
// its first successful long-poll: "tt=0&tr=0" tells the service to
// begin delivering from now rather than resume a prior position.
var ColdStartTimetoken = Timetoken{T: "0", R: 0}

// IsColdStart reports whether tt is the cold-start sentinel.
func IsColdStart(tt Timetoken) bool {
	return tt.T == "0" || tt.T == ""
}

// Before reports whether a precedes b. Timetokens are compared as
// decimal numbers, not as strings, since string comparison would put
// "9" after "10"; in practice
// the service always emits 17-digit values so the two comparisons
// agree, but Before does the numeric comparison to be correct either
// way.
func Before(a, b Timetoken) bool {
	an, aerr := strconv.ParseUint(a.T, 10, 64)
	bn, berr := strconv.ParseUint(b.T, 10, 64)
	if aerr != nil || berr != nil {
		return a.T < b.T
	}
	return an < bn
}
