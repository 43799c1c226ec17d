package events

import (
	"sync"

	"github.com/google/uuid"
)

// SubscribeProject subscribes to every event of one project. The returned
// function unsubscribes and closes the channel.
func SubscribeProject(b *Bus, id uuid.UUID, buffer int) (<-chan ProjectEvent, func()) {
	in, unsubscribe := Subscribe[ProjectEvent](b, buffer)
	out := make(chan ProjectEvent, buffer)
	stop := make(chan struct{})

	go func() {
		defer close(out)
		for evt := range in {
			if evt.ProjectID() != id {
				continue
			}
			select {
			case out <- evt:
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(stop)
			unsubscribe()
		})
	}
}
