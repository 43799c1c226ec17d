// Package bridge forwards project events to NATS so presentation layers in
// other processes can follow the registry.
//
// Subjects are "<prefix>.<kind>" (for example "cubepio.events.stage_changed");
// the payload is an Envelope encoded as JSON.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/cubepio/internal/events"
	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/logfields"
	"git.home.luguber.info/inful/cubepio/internal/retry"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope is the wire form of a forwarded event.
type Envelope struct {
	Kind      string    `json:"kind"`
	ProjectID string    `json:"project_id"`
	SentAt    time.Time `json:"sent_at"`
	Event     any       `json:"event"`
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("cubepio"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", url).
			Build()
	}
	slog.Info("NATS bridge connected", "url", url)
	return conn, nil
}

// Forwarder publishes every project event it receives from a bus.
type Forwarder struct {
	pub    Publisher
	prefix string
	policy retry.Policy
	ch     <-chan events.ProjectEvent
	unsub  func()
}

// NewForwarder subscribes to bus. Call Run to start forwarding. Failed
// publishes are retried according to policy.
func NewForwarder(bus *events.Bus, pub Publisher, prefix string, policy retry.Policy, buffer int) *Forwarder {
	ch, unsub := events.Subscribe[events.ProjectEvent](bus, buffer)
	return &Forwarder{pub: pub, prefix: prefix, policy: policy, ch: ch, unsub: unsub}
}

// Subject returns the subject an event of kind is published on.
func (f *Forwarder) Subject(kind string) string {
	if f.prefix == "" {
		return kind
	}
	return f.prefix + "." + kind
}

// Run forwards events until ctx is done or the bus is closed. An event whose
// publish still fails after the retries is logged and dropped.
func (f *Forwarder) Run(ctx context.Context) {
	defer f.unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-f.ch:
			if !ok {
				return
			}
			if err := f.forward(ctx, evt); err != nil {
				slog.Warn("Failed to forward event", "kind", evt.Kind(), logfields.Error(err))
			}
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, evt events.ProjectEvent) error {
	data, err := json.Marshal(Envelope{
		Kind:      evt.Kind(),
		ProjectID: evt.ProjectID().String(),
		SentAt:    time.Now().UTC(),
		Event:     evt,
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal event").Build()
	}
	subject := f.Subject(evt.Kind())
	if err := f.policy.Do(ctx, func() error { return f.pub.Publish(subject, data) }); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to publish event").Build()
	}
	return nil
}
