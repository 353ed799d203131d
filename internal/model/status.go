package model

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Status is the fulfilment stage of an order, ordered by progression index.
type Status int

const (
	StatusConfirmed Status = iota
	StatusPreparing
	StatusReady
	StatusCompleted
)

// Statuses lists every status in progression order.
var Statuses = []Status{StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted}

var statusNames = [...]string{"confirmed", "preparing", "ready", "completed"}

var statusLabels = [...]string{"Order Confirmed", "Preparing", "Ready for Pickup", "Completed"}

func (s Status) Valid() bool { return s >= StatusConfirmed && s <= StatusCompleted }

func (s Status) Index() int { return int(s) }

func (s Status) Terminal() bool { return s == StatusCompleted }

// Next returns the following status; ok is false for completed.
func (s Status) Next() (Status, bool) {
	if !s.Valid() || s.Terminal() {
		return s, false
	}
	return s + 1, true
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// Label is the display text for the status timeline.
func (s Status) Label() string {
	if !s.Valid() {
		return s.String()
	}
	return statusLabels[s]
}

// ParseStatus maps a lower-case name back to a Status.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, errors.Newf("unknown status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, errors.Newf("invalid status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// EstimatedMinutes is the display estimate for a status: max(0, 15 - 5*index).
func EstimatedMinutes(s Status) int {
	m := 15 - 5*s.Index()
	if m < 0 {
		return 0
	}
	return m
}
