package server

import (
	"strings"
	"time"
)

// Control phrases intercepted by the relay.
const (
	getTimePhrase = "get time"
	exitPhrase    = "exit"
)

// longTimeLayout renders a long time-of-day such as "3:45:12 PM".
const longTimeLayout = "3:04:05 PM"

type action int

const (
	actionBroadcast action = iota
	actionGetTime
	actionExit
)

func (a action) String() string {
	switch a {
	case actionGetTime:
		return "get-time"
	case actionExit:
		return "exit"
	default:
		return "broadcast"
	}
}

// classify decides what a decoded read asks for. "get time" anywhere wins
// over everything; "exit" must be the whole read. Reads are undelimited, so
// "exit" followed by more bytes in the same read is ordinary text.
func classify(text string) action {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, getTimePhrase):
		return actionGetTime
	case lower == exitPhrase:
		return actionExit
	default:
		return actionBroadcast
	}
}

// decodeASCII turns raw bytes into text, substituting '?' for every byte
// outside the 7-bit range.
func decodeASCII(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		if c > 0x7f {
			c = '?'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func formatTimeOfDay(t time.Time) string {
	return t.Format(longTimeLayout)
}
