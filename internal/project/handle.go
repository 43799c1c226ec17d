package project

import (
	"git.home.luguber.info/inful/cubepio/internal/events"
)

// Handle is a stable reference to one project. It stays bound to the same
// project when indices shift; once the project is removed every method fails
// with ErrIndex.
type Handle struct {
	r  *Registry
	id ID
}

// ID returns the project's identity.
func (h Handle) ID() ID { return h.id }

// with runs fn on the loop with the live project.
func (h Handle) with(fn func(p *project, index int) error) error {
	if h.r == nil {
		return errNotFound(h.id)
	}
	var inner error
	if err := h.r.call(func() {
		p, ok := h.r.projects[h.id]
		if !ok {
			inner = errNotFound(h.id)
			return
		}
		inner = fn(p, h.r.indexOf(h.id))
	}); err != nil {
		return err
	}
	return inner
}

// Location returns the normalised project directory.
func (h Handle) Location() (string, error) {
	var loc string
	err := h.with(func(p *project, _ int) error {
		loc = p.location
		return nil
	})
	return loc, err
}

// Snapshot returns the project's current state.
func (h Handle) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := h.with(func(p *project, index int) error {
		s = p.snapshot(index)
		return nil
	})
	return s, err
}

// Run starts an action and returns once it is dispatched. Progress and the
// result arrive as events. Fails with ErrUnknownAction, ErrNotReady,
// ErrInvalidProject or ErrActionBusy without starting anything.
func (h Handle) Run(action string, args ...string) error {
	return h.with(func(p *project, _ int) error {
		return h.r.run(p, action, append([]string(nil), args...))
	})
}

// RecomputeStages re-probes the project. StageChanged is emitted only when
// the report differs from the last one. Loading and invalid projects are left
// alone.
func (h Handle) RecomputeStages() error {
	return h.with(func(p *project, _ int) error {
		if p.state == StateResolved {
			h.r.startProbe(p, false)
		}
		return nil
	})
}

// MarkPendingRemoval records that removal of an invalid project awaits
// confirmation. Actions stay rejected.
func (h Handle) MarkPendingRemoval() error {
	return h.with(func(p *project, _ int) error {
		if p.state == StatePendingRemoval {
			return nil
		}
		if p.state != StateInvalid {
			return ErrNotRemovable.WithContext("state", string(p.state))
		}
		h.r.transition(p, EventConfirmPrompt)
		h.r.emitStages(p, true)
		return nil
	})
}

// Log returns a copy of the project log.
func (h Handle) Log() ([]string, error) {
	var lines []string
	err := h.with(func(p *project, _ int) error {
		lines = append([]string(nil), p.log...)
		return nil
	})
	return lines, err
}

// Subscribe returns this project's events. The subscription is not tied to
// the project's lifetime; ProjectRemoved is the last event it will see.
func (h Handle) Subscribe(buffer int) (<-chan events.ProjectEvent, func()) {
	return events.SubscribeProject(h.r.bus, h.id, buffer)
}
