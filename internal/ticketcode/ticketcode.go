// Package ticketcode converts between internal ticket ids and the printable
// ticket numbers used for manual and bulk entry, e.g. "VIP-000042".
package ticketcode

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const defaultPrefix = "TICKET"

// Encode formats id using the ticket type as prefix. Ids wider than six digits are not truncated.
func Encode(id int64, ticketType string) string {
	prefix := strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, ticketType))
	if prefix == "" {
		prefix = defaultPrefix
	}
	return fmt.Sprintf("%s-%06d", prefix, id)
}

// Decode extracts the ticket id from the last dash-separated segment of a
// ticket number. ok is false when no positive id can be recovered.
func Decode(ticketNumber string) (id int64, ok bool) {
	trimmed := strings.TrimSpace(ticketNumber)
	if trimmed == "" {
		return 0, false
	}

	// Trailing dashes are ignored, so "T-000001-" still decodes.
	last := strings.TrimRight(trimmed, "-")
	if i := strings.LastIndex(last, "-"); i >= 0 {
		last = last[i+1:]
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, last)
	if digits == "" {
		return 0, false
	}

	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
