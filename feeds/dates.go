package feeds

import "time"

// DateErrorMarker tags records whose upstream timestamp failed to parse and
// were stamped with the sync time instead.
const DateErrorMarker = "[date-parse-error]"

// dateFormats is the ordered list of upstream timestamp layouts we accept.
// NVD and OSV emit RFC 3339 variants, KEV uses bare dates, JVN's RSS uses
// RFC 1123 style stamps.
var dateFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04-07:00",
}

// ParseDate tries each known layout in order. When none matches it returns
// the current time with ok=false so a single malformed stamp degrades one
// record instead of aborting the sync.
func ParseDate(value string) (t time.Time, ok bool) {
	for _, layout := range dateFormats {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Now().UTC(), false
}
