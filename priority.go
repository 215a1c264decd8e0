package prioq

import (
	"errors"
	"strconv"
)

// Priority is the urgency ordinal carried by every Request.
// Lower values are served first.
type Priority uint8

const (
	High   Priority = 1
	Medium Priority = 2
	Low    Priority = 3
)

// ErrInvalidPriority is returned by ParsePriority for anything outside 1..3.
var ErrInvalidPriority = errors.New("prioq: invalid priority")

// ParsePriority accepts exactly one of "1", "2" or "3".
func ParsePriority(s string) (Priority, error) {
	if len(s) != 1 {
		return 0, ErrInvalidPriority
	}
	p := Priority(s[0] - '0')
	if !p.Valid() {
		return 0, ErrInvalidPriority
	}
	return p, nil
}

// Valid reports whether p is one of High, Medium or Low.
func (p Priority) Valid() bool {
	return p >= High && p <= Low
}

func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "priority(" + strconv.Itoa(int(p)) + ")"
	}
}
