package project

import (
	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
)

// State is the lifecycle state of a project.
type State string

const (
	StateLoading        State = "loading"         // name and validity being resolved
	StateResolved       State = "resolved"        // stages are meaningful
	StateInvalid        State = "invalid"         // identity resource missing
	StatePendingRemoval State = "pending_removal" // invalid, removal awaiting confirmation
	StateRemoved        State = "removed"
)

// Event drives state transitions.
type Event string

const (
	EventResolved      Event = "resolved"       // first probe found a valid project
	EventInvalidated   Event = "invalidated"    // a probe found the identity resource missing
	EventConfirmPrompt Event = "confirm_prompt" // removal confirmation requested
	EventRemove        Event = "remove"
)

type transitionKey struct {
	From  State
	Event Event
}

// transitions lists every legal (state, event) pair. Invalid is terminal
// except through removal.
var transitions = map[transitionKey]State{
	{StateLoading, EventResolved}:      StateResolved,
	{StateLoading, EventInvalidated}:   StateInvalid,
	{StateResolved, EventInvalidated}:  StateInvalid,
	{StateInvalid, EventConfirmPrompt}: StatePendingRemoval,
	{StateLoading, EventRemove}:        StateRemoved,
	{StateResolved, EventRemove}:       StateRemoved,
	{StateInvalid, EventRemove}:        StateRemoved,
	{StatePendingRemoval, EventRemove}: StateRemoved,
}

// next returns the target state or an internal error for an illegal transition.
func next(from State, evt Event) (State, error) {
	to, ok := transitions[transitionKey{from, evt}]
	if !ok {
		return from, ferrors.InternalError("illegal project state transition").
			WithContext("from", string(from)).
			WithContext("event", string(evt)).
			Build()
	}
	return to, nil
}

// CanRun reports whether actions may be dispatched in state s.
func (s State) CanRun() bool { return s == StateResolved }
