package runtime

import (
	"strconv"
	"strings"
	"time"
)

// inQuietHours reports whether now falls within q's configured window.
// start == end means the window spans the full day. start < end is a
// same-day window [start, end). start > end wraps past midnight and is
// true whenever the current time is >= start OR < end.
func inQuietHours(q QuietHours, now time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, okStart := parseHHMM(q.Start)
	end, okEnd := parseHHMM(q.End)
	if !okStart || !okEnd {
		return false
	}
	if start == end {
		return true
	}

	cur := now.Hour()*60 + now.Minute()
	if start < end {
		return cur >= start && cur < end
	}
	return cur >= start || cur < end
}

func parseHHMM(s string) (minutesOfDay int, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
