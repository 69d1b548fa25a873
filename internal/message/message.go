// Package message defines the envelope written to the signal file and its
// JSON wire format.
//
// A message is a single flat JSON object carrying the creation time and a
// tagged action:
//
//	{"ctime": 1700000000, "action": "focus", "target": 4242}
//
// An empty file carries no message at all; it is a bare "something changed"
// signal (a touch).
package message

import (
	"encoding/json"
	"time"
)

// Action tags understood by this version.
const (
	TagFocus = "focus"
)

// Action is the tagged payload of a Message. The set of variants is closed
// within this package: FocusAction and UnknownAction.
type Action interface {
	// Tag returns the wire tag stored under the "action" key.
	Tag() string

	isAction()
}

// FocusAction asks the instance running as Target to raise and focus its
// main window.
type FocusAction struct {
	Target uint32
}

// Tag implements Action.
func (FocusAction) Tag() string { return TagFocus }

func (FocusAction) isAction() {}

// Focus is a shorthand for a FocusAction addressed to pid.
func Focus(pid uint32) FocusAction {
	return FocusAction{Target: pid}
}

// UnknownAction holds an action written by a newer producer that this reader
// does not understand. Fields keeps every key except "ctime" and "action" so
// the envelope re-encodes unchanged. Field values are compact JSON and
// Fields is nil when there are none.
type UnknownAction struct {
	Name   string
	Fields map[string]json.RawMessage
}

// Tag implements Action.
func (a UnknownAction) Tag() string { return a.Name }

func (UnknownAction) isAction() {}

// Message is the envelope stored in the signal file. CTime is set once at
// construction (seconds since the Unix epoch).
type Message struct {
	CTime  uint64
	Action Action
}

// New stamps action with the current time.
func New(action Action) Message {
	return NewAt(action, time.Now())
}

// NewAt stamps action with the given time. Mostly useful in tests.
func NewAt(action Action, at time.Time) Message {
	return Message{CTime: unixSeconds(at), Action: action}
}

// Age returns how old the message is at now. Messages from the future have
// age zero.
func (m Message) Age(now time.Time) time.Duration {
	n := unixSeconds(now)
	if n <= m.CTime {
		return 0
	}
	return time.Duration(n-m.CTime) * time.Second
}

// IsValid reports whether the message is at most maxAge old at now.
// Ages are compared in whole seconds.
func (m Message) IsValid(maxAge time.Duration, now time.Time) bool {
	return m.Age(now) <= maxAge.Truncate(time.Second)
}

func unixSeconds(t time.Time) uint64 {
	s := t.Unix()
	if s < 0 {
		return 0
	}
	return uint64(s)
}
