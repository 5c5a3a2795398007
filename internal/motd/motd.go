// Package motd is the message-of-the-day collaborator. The core only ever
// asks "what is active right now" and compares ids against the client's
// dismissed set; the content store behind it is external.
package motd

import (
	"encoding/json"
	"os"
)

// Message is one server announcement.
type Message struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Dismissable bool   `json:"dismissable"`
}

// Provider yields the currently active message, if any.
type Provider interface {
	Active() (Message, bool)
}

// Static is a Provider pinned to a fixed message (or none).
type Static struct {
	msg *Message
}

// None returns a Provider with no active message.
func None() *Static { return &Static{} }

// Fixed returns a Provider that always serves msg.
func Fixed(msg Message) *Static { return &Static{msg: &msg} }

func (s *Static) Active() (Message, bool) {
	if s.msg == nil {
		return Message{}, false
	}
	return *s.msg, true
}

// FromFile loads a single JSON message document. A missing file means "no
// active MOTD", not an error, so operators can remove the file to clear it.
func FromFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return None(), nil
		}
		return nil, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return Fixed(msg), nil
}
