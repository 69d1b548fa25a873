package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmpty is returned by Decode for empty (or whitespace-only) input: the
// file was touched, not written with a message.
var ErrEmpty = errors.New("message: empty payload")

// DecodeError reports malformed envelope content.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("message: %s: %v", e.Reason, e.Err)
	}
	return "message: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

const (
	keyCTime  = "ctime"
	keyAction = "action"
	keyTarget = "target"
)

type focusWire struct {
	CTime  uint64 `json:"ctime"`
	Action string `json:"action"`
	Target uint32 `json:"target"`
}

// Encode serializes m in its canonical flat form.
func Encode(m Message) ([]byte, error) {
	switch a := m.Action.(type) {
	case FocusAction:
		return json.Marshal(focusWire{CTime: m.CTime, Action: TagFocus, Target: a.Target})
	case UnknownAction:
		if a.Name == "" {
			return nil, errors.New("message: unknown action without a tag")
		}
		obj := make(map[string]json.RawMessage, len(a.Fields)+2)
		for k, v := range a.Fields {
			if k == keyCTime || k == keyAction {
				return nil, fmt.Errorf("message: reserved field %q in action %q", k, a.Name)
			}
			if !isCompact(v) {
				return nil, fmt.Errorf("message: field %q in action %q is not compact JSON", k, a.Name)
			}
			obj[k] = v
		}
		obj[keyCTime] = json.RawMessage(fmt.Sprintf("%d", m.CTime))
		tag, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		obj[keyAction] = tag
		return json.Marshal(obj)
	case nil:
		return nil, errors.New("message: nil action")
	default:
		return nil, fmt.Errorf("message: unsupported action type %T", m.Action)
	}
}

// Decode parses data produced by Encode. Empty input yields ErrEmpty,
// malformed input a *DecodeError. Tags this version does not know decode to
// UnknownAction.
func Decode(data []byte) (Message, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Message{}, ErrEmpty
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Message{}, &DecodeError{Reason: "invalid json object", Err: err}
	}

	rawCTime, ok := fields[keyCTime]
	if !ok {
		return Message{}, &DecodeError{Reason: "missing ctime"}
	}
	var ctime uint64
	if err := json.Unmarshal(rawCTime, &ctime); err != nil {
		return Message{}, &DecodeError{Reason: "invalid ctime", Err: err}
	}

	rawAction, ok := fields[keyAction]
	if !ok {
		return Message{}, &DecodeError{Reason: "missing action"}
	}
	var tag string
	if err := json.Unmarshal(rawAction, &tag); err != nil {
		return Message{}, &DecodeError{Reason: "invalid action tag", Err: err}
	}
	if tag == "" {
		return Message{}, &DecodeError{Reason: "empty action tag"}
	}

	switch tag {
	case TagFocus:
		rawTarget, ok := fields[keyTarget]
		if !ok {
			return Message{}, &DecodeError{Reason: "focus: missing target"}
		}
		var target uint32
		if err := json.Unmarshal(rawTarget, &target); err != nil {
			return Message{}, &DecodeError{Reason: "focus: invalid target", Err: err}
		}
		return Message{CTime: ctime, Action: FocusAction{Target: target}}, nil
	default:
		delete(fields, keyCTime)
		delete(fields, keyAction)
		rest, err := compactFields(fields)
		if err != nil {
			return Message{}, &DecodeError{Reason: "invalid field in action " + tag, Err: err}
		}
		return Message{CTime: ctime, Action: UnknownAction{Name: tag, Fields: rest}}, nil
	}
}

// compactFields strips insignificant whitespace from every value so the
// decoded action encodes back to the same bytes. No fields yields nil.
func compactFields(fields map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return nil, err
		}
		out[k] = json.RawMessage(buf.Bytes())
	}
	return out, nil
}

func isCompact(v json.RawMessage) bool {
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return false
	}
	return bytes.Equal(buf.Bytes(), v)
}
