package domain

import (
	"strconv"
	"time"
)

// Quiet-hours window: delivery is permitted while the recipient-local hour
// is inside [WakingStartHour, WakingEndHour).
const (
	WakingStartHour = 8
	WakingEndHour   = 22
)

// OffsetHours extracts the signed hour component from a "±HH:MM" timezone
// offset. Only the hour part participates in the quiet-hours decision;
// malformed offsets are treated as zero.
func OffsetHours(offset string) int {
	if len(offset) < 3 {
		return 0
	}
	h, err := strconv.Atoi(offset[:3])
	if err != nil {
		return 0
	}
	return h
}

// RecipientLocalHour computes the recipient's local hour of day for the
// given UTC instant, normalised to [0, 24).
func RecipientLocalHour(t time.Time, offset string) int {
	return (t.UTC().Hour() + OffsetHours(offset) + 24) % 24
}

// InWakingHours reports whether the given UTC instant falls inside the
// recipient's local waking window.
func InWakingHours(t time.Time, offset string) bool {
	h := RecipientLocalHour(t, offset)
	return h >= WakingStartHour && h < WakingEndHour
}
