package common

import "time"

// DisplayLayout is the persisted human-readable timestamp layout shared by
// every component: seconds precision, no fractional part, no zone suffix.
const DisplayLayout = "2006-01-02 15:04:05"

// displayZone is the fixed UTC+5:30 offset used for all stored display
// timestamps. Deliberately a fixed offset, not a DST-aware location.
var displayZone = time.FixedZone("UTC+5:30", 5*3600+30*60)

// FormatDisplay renders t in the fixed UTC+5:30 display convention.
func FormatDisplay(t time.Time) string {
	return t.In(displayZone).Format(DisplayLayout)
}

// ParseSensorTimestamp parses a source-reported "YYYY-MM-DD HH:mm:ss"
// timestamp, which the sensor aggregation API reports in UTC.
func ParseSensorTimestamp(s string) (time.Time, error) {
	return time.Parse(DisplayLayout, s)
}
