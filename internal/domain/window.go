package domain

import (
	"fmt"
	"time"
)

// WindowExpired reports whether more than d has passed since start. Code, link and
// session lifetimes go through it; start+d itself is still valid. The resend cooldown
// is the store's conditional reissue, which reopens at exactly start+d.
func WindowExpired(start, now time.Time, d time.Duration) bool {
	return now.After(start.Add(d))
}

// WindowRemaining returns how much of the window starting at start is left, never negative.
func WindowRemaining(start, now time.Time, d time.Duration) time.Duration {
	left := start.Add(d).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// FormatRemaining renders a duration as minutes:seconds, e.g. 0:42 or 2:05.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
