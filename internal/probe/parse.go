package probe

import (
	"regexp"
	"strconv"
	"strings"
)

// avg-rtt comes back as "<s>s<ms>ms" with either part optional ("2s350ms",
// "75ms", "1s").
var avgRTTPattern = regexp.MustCompile(`(?:(\d+)s)?(?:(\d+)ms)?`)

// ParseAvgRTT converts RouterOS avg-rtt text to milliseconds.
// Unparseable input yields 0.
func ParseAvgRTT(s string) float64 {
	m := avgRTTPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	var ms float64
	if m[1] != "" {
		secs, _ := strconv.Atoi(m[1])
		ms += float64(secs) * 1000
	}
	if m[2] != "" {
		v, _ := strconv.Atoi(m[2])
		ms += float64(v)
	}
	return ms
}

// RouterOS versions disagree on how a healthy link reads; booleans arrive
// as words too, so the same set answers for monitor status and the print
// fallback's running flag.
var linkUpWords = map[string]bool{
	"link-ok": true,
	"link_ok": true,
	"ok":      true,
	"up":      true,
	"running": true,
	"true":    true,
	"yes":     true,
}

// LinkUp reports whether a RouterOS link-status word means the link is up.
func LinkUp(status string) bool {
	return linkUpWords[strings.ToLower(strings.TrimSpace(status))]
}
