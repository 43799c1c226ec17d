package store

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/cubepio/internal/events"
	"git.home.luguber.info/inful/cubepio/internal/logfields"
)

// Appender is the write side of Store used by Recorder.
type Appender interface {
	Append(ctx context.Context, location string, evt events.ProjectEvent) error
}

// Recorder copies every project event from a bus into the store.
type Recorder struct {
	store     Appender
	ch        <-chan events.ProjectEvent
	unsub     func()
	locations map[uuid.UUID]string
}

// NewRecorder subscribes to bus. Call Run to start recording.
func NewRecorder(bus *events.Bus, store Appender, buffer int) *Recorder {
	ch, unsub := events.Subscribe[events.ProjectEvent](bus, buffer)
	return &Recorder{
		store:     store,
		ch:        ch,
		unsub:     unsub,
		locations: make(map[uuid.UUID]string),
	}
}

// Run records events until ctx is done or the bus is closed.
func (r *Recorder) Run(ctx context.Context) {
	defer r.unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-r.ch:
			if !ok {
				return
			}
			r.record(ctx, evt)
		}
	}
}

func (r *Recorder) record(ctx context.Context, evt events.ProjectEvent) {
	id := evt.ProjectID()
	if added, ok := evt.(events.ProjectAdded); ok {
		r.locations[id] = added.Location
	}
	loc, ok := r.locations[id]
	if !ok {
		slog.Debug("Dropping event for unknown project", logfields.ProjectID(id.String()), "kind", evt.Kind())
		return
	}
	if _, removed := evt.(events.ProjectRemoved); removed {
		delete(r.locations, id)
	}
	if err := r.store.Append(ctx, loc, evt); err != nil {
		slog.Warn("Failed to record event", logfields.Location(loc), "kind", evt.Kind(), logfields.Error(err))
	}
}
