package chat

import (
	"errors"
	"fmt"
)

// State is a step in the lifecycle of one chat request.
type State int

const (
	Composing State = iota
	ContextFetch
	Sending
	AwaitingResponse
	Succeeded
	FailedNetwork
	FailedDecode
)

var stateNames = [...]string{
	Composing:        "composing",
	ContextFetch:     "context_fetch",
	Sending:          "sending",
	AwaitingResponse: "awaiting_response",
	Succeeded:        "succeeded",
	FailedNetwork:    "failed_network",
	FailedDecode:     "failed_decode",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == Succeeded || s == FailedNetwork || s == FailedDecode
}

// Error is a chat failure tagged with the terminal state it ended in.
type Error struct {
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("chat %s: %v", e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether err is a transport failure or timeout. The user
// may retry these.
func IsNetwork(err error) bool {
	var chatErr *Error
	return errors.As(err, &chatErr) && chatErr.State == FailedNetwork
}

func IsDecode(err error) bool {
	var chatErr *Error
	return errors.As(err, &chatErr) && chatErr.State == FailedDecode
}
