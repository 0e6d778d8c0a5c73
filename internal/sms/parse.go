package sms

import (
	"strconv"
	"strings"

	"github.com/rtdickson/event-site/internal/store"
)

// ParseReply interprets an inbound RSVP text. Accepted forms, case
// insensitive: "yes", "no", "maybe", optionally followed by a guest count
// ("yes 3"). A missing or unparseable count defaults to 0. ok is false when
// the body is not an RSVP at all.
func ParseReply(body string) (attending string, guests int, ok bool) {
	text := strings.ToLower(strings.TrimSpace(body))

	switch {
	case strings.HasPrefix(text, "yes"):
		attending = store.AttendingYes
	case strings.HasPrefix(text, "no"):
		return store.AttendingNo, 0, true
	case strings.HasPrefix(text, "maybe"):
		attending = store.AttendingMaybe
	default:
		return "", 0, false
	}

	fields := strings.Fields(text)
	if len(fields) > 1 {
		if n, err := strconv.Atoi(fields[1]); err == nil && n >= 0 {
			guests = n
		}
	}
	return attending, guests, true
}
