package extractor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

const dateLayout = "Mon, 2 Jan 2006 15:04:05 -0700"

// Zone abbreviations Go cannot resolve on its own, mapped to their offsets.
var zoneOffsets = map[string]string{
	"EDT": "-0400",
	"EST": "-0500",
	"CDT": "-0500",
	"CST": "-0600",
	"MDT": "-0600",
	"MST": "-0700",
	"PDT": "-0700",
	"PST": "-0800",
	"GMT": "+0000",
	"UT":  "+0000",
	"UTC": "+0000",
	"Z":   "+0000",
}

// ParseDate parses an RFC-822 style date such as "Mon, 02 Jan 2023 10:00:00 EST".
// An empty value yields now().
func ParseDate(value string, now func() time.Time) (time.Time, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return now(), nil
	}

	if offset, ok := zoneOffsets[strings.ToUpper(fields[len(fields)-1])]; ok {
		fields[len(fields)-1] = offset
	}

	parsed, err := time.Parse(dateLayout, strings.Join(fields, " "))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: '%s'", ErrInvalidDate, value)
	}
	return parsed, nil
}
