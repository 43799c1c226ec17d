package project

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/cubepio/internal/action"
	"git.home.luguber.info/inful/cubepio/internal/events"
	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/logfields"
	"git.home.luguber.info/inful/cubepio/internal/metrics"
	"git.home.luguber.info/inful/cubepio/internal/probe"
)

// Executor runs actions. *action.Executor satisfies it.
type Executor interface {
	Has(name string) bool
	Execute(ctx context.Context, req action.Request) (<-chan action.Message, error)
}

// Persister stores the ordered list of project locations. It is called on the
// registry loop and must not call back into the registry.
type Persister interface {
	SaveProjects(ctx context.Context, locations []string) error
}

// Registry is the ordered, index-addressable collection of projects.
//
// All project state is owned by a single loop goroutine. Public methods submit
// closures to the loop and wait for them; action and probe goroutines post
// their results back the same way. Notifications leave through an Outbox so
// the loop never blocks on subscribers.
type Registry struct {
	prober    probe.Prober
	executor  Executor
	bus       *events.Bus
	outbox    *events.Outbox
	recorder  metrics.Recorder
	persister Persister

	cmds chan func()
	quit chan struct{}
	done chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	// workers tracks probe and action-forwarding goroutines.
	workers   sync.WaitGroup
	closeOnce sync.Once

	// loop-owned
	order    []ID
	projects map[ID]*project
}

// Option configures a Registry.
type Option func(*Registry)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(reg *Registry) {
		if r != nil {
			reg.recorder = r
		}
	}
}

// WithPersister stores the project list after every Add and Remove.
func WithPersister(p Persister) Option {
	return func(reg *Registry) { reg.persister = p }
}

// NewRegistry starts the registry loop. Close must be called to stop it.
func NewRegistry(prober probe.Prober, executor Executor, bus *events.Bus, opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		prober:   prober,
		executor: executor,
		bus:      bus,
		outbox:   events.NewOutbox(bus),
		recorder: metrics.NoopRecorder{},
		cmds:     make(chan func(), 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		projects: make(map[ID]*project),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.loop()
	return r
}

// Bus returns the notification bus the registry publishes to.
func (r *Registry) Bus() *events.Bus { return r.bus }

func (r *Registry) loop() {
	defer close(r.done)
	for {
		select {
		case fn := <-r.cmds:
			fn()
		case <-r.quit:
			return
		}
	}
}

// call runs fn on the loop and waits for it.
func (r *Registry) call(fn func()) error {
	finished := make(chan struct{})
	select {
	case r.cmds <- func() { defer close(finished); fn() }:
	case <-r.done:
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		// The loop exited before picking fn up.
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// post hands fn to the loop without waiting for it to run. It reports false
// once the registry is closed.
func (r *Registry) post(fn func()) bool {
	select {
	case r.cmds <- fn:
		return true
	case <-r.done:
		return false
	}
}

// Close stops the loop, cancels running tools and waits for background work
// and pending notifications, or until ctx ends.
func (r *Registry) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.cancel()
		close(r.quit)
		<-r.done

		waited := make(chan struct{})
		go func() {
			r.workers.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if oerr := r.outbox.Close(ctx); err == nil {
			err = oerr
		}
	})
	return err
}

func normalizeLocation(location string) (string, error) {
	if strings.TrimSpace(location) == "" {
		return "", ferrors.ValidationError("project location is empty").Build()
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryValidation, "invalid project location").Build()
	}
	return filepath.Clean(abs), nil
}

// Add registers location and returns its index. Name and validity are
// resolved asynchronously; the project starts in StateLoading.
func (r *Registry) Add(location string) (int, error) {
	return r.add(location, false)
}

// AddFromStartup registers a location restored from the persisted project
// list. The list is not re-persisted.
func (r *Registry) AddFromStartup(location string) (int, error) {
	return r.add(location, true)
}

func (r *Registry) add(location string, fromStartup bool) (int, error) {
	loc, err := normalizeLocation(location)
	if err != nil {
		return -1, err
	}
	index := -1
	var addErr error
	if err := r.call(func() {
		if r.findLocation(loc) >= 0 {
			addErr = ErrDuplicate.WithContext("location", loc)
			return
		}
		p := &project{
			id:          uuid.New(),
			location:    loc,
			displayName: "",
			fromStartup: fromStartup,
			state:       StateLoading,
		}
		r.projects[p.id] = p
		r.order = append(r.order, p.id)
		index = len(r.order) - 1

		slog.Debug("Project added", logfields.ProjectID(p.id.String()), logfields.Location(loc), logfields.Index(index))
		r.outbox.Push(events.ProjectAdded{
			Header:      events.NewHeader(p.id),
			Location:    loc,
			Index:       index,
			FromStartup: fromStartup,
		})
		r.recorder.SetProjects(len(r.order))
		if !fromStartup {
			r.persist()
		}
		r.startProbe(p, false)
	}); err != nil {
		return -1, err
	}
	return index, addErr
}

// Remove deletes the project at index i. Later indices shift down by one, and
// ProjectRemoved is queued in the same loop step, so no caller can observe the
// shifted order before the notification.
func (r *Registry) Remove(i int) error {
	var rmErr error
	if err := r.call(func() {
		if i < 0 || i >= len(r.order) {
			rmErr = ErrIndex.WithContext("index", i)
			return
		}
		rmErr = r.removeAt(i)
	}); err != nil {
		return err
	}
	return rmErr
}

// RemoveID deletes the project with the given ID.
func (r *Registry) RemoveID(id ID) error {
	var rmErr error
	if err := r.call(func() {
		i := r.indexOf(id)
		if i < 0 {
			rmErr = ErrIndex.WithContext("project_id", id.String())
			return
		}
		rmErr = r.removeAt(i)
	}); err != nil {
		return err
	}
	return rmErr
}

func (r *Registry) removeAt(i int) error {
	id := r.order[i]
	p := r.projects[id]
	to, err := next(p.state, EventRemove)
	if err != nil {
		return err
	}
	p.state = to
	r.order = append(r.order[:i:i], r.order[i+1:]...)
	delete(r.projects, id)
	p.log = nil

	slog.Debug("Project removed", logfields.ProjectID(id.String()), logfields.Location(p.location), logfields.Index(i),
		slog.Bool("action_running", p.actionRunning))
	r.outbox.Push(events.ProjectRemoved{Header: events.NewHeader(id), Location: p.location, Index: i})
	r.recorder.SetProjects(len(r.order))
	r.persist()
	return nil
}

func (r *Registry) persist() {
	if r.persister == nil {
		return
	}
	locs := make([]string, len(r.order))
	for i, id := range r.order {
		locs[i] = r.projects[id].location
	}
	if err := r.persister.SaveProjects(r.ctx, locs); err != nil {
		slog.Warn("Failed to persist project list", logfields.Error(err))
	}
}

func (r *Registry) findLocation(loc string) int {
	for i, id := range r.order {
		if r.projects[id].location == loc {
			return i
		}
	}
	return -1
}

func (r *Registry) indexOf(id ID) int {
	for i, other := range r.order {
		if other == id {
			return i
		}
	}
	return -1
}

// Get returns a handle to the project currently at index i.
func (r *Registry) Get(i int) (Handle, error) {
	var h Handle
	var getErr error
	if err := r.call(func() {
		if i < 0 || i >= len(r.order) {
			getErr = ErrIndex.WithContext("index", i)
			return
		}
		h = Handle{r: r, id: r.order[i]}
	}); err != nil {
		return Handle{}, err
	}
	return h, getErr
}

// Handle returns a handle for a known ID.
func (r *Registry) Handle(id ID) Handle { return Handle{r: r, id: id} }

// Count returns the number of registered projects.
func (r *Registry) Count() int {
	n := 0
	_ = r.call(func() { n = len(r.order) })
	return n
}

// IndexOf returns the current index of a project.
func (r *Registry) IndexOf(id ID) (int, error) {
	i := -1
	if err := r.call(func() { i = r.indexOf(id) }); err != nil {
		return -1, err
	}
	if i < 0 {
		return -1, ErrIndex.WithContext("project_id", id.String())
	}
	return i, nil
}

// Find returns the handle of the project registered at location.
func (r *Registry) Find(location string) (Handle, error) {
	loc, err := normalizeLocation(location)
	if err != nil {
		return Handle{}, err
	}
	var h Handle
	found := false
	if err := r.call(func() {
		if i := r.findLocation(loc); i >= 0 {
			h, found = Handle{r: r, id: r.order[i]}, true
		}
	}); err != nil {
		return Handle{}, err
	}
	if !found {
		return Handle{}, ErrIndex.WithContext("location", loc)
	}
	return h, nil
}

// Snapshot returns the state of the project at index i.
func (r *Registry) Snapshot(i int) (Snapshot, error) {
	var s Snapshot
	var snapErr error
	if err := r.call(func() {
		if i < 0 || i >= len(r.order) {
			snapErr = ErrIndex.WithContext("index", i)
			return
		}
		s = r.projects[r.order[i]].snapshot(i)
	}); err != nil {
		return Snapshot{}, err
	}
	return s, snapErr
}

// Snapshots returns the state of every project in index order.
func (r *Registry) Snapshots() []Snapshot {
	var out []Snapshot
	_ = r.call(func() {
		out = make([]Snapshot, len(r.order))
		for i, id := range r.order {
			out[i] = r.projects[id].snapshot(i)
		}
	})
	return out
}

// RecomputeAll re-probes every resolved project, e.g. when the host regains
// focus. It returns the number of probes started.
func (r *Registry) RecomputeAll() int {
	n := 0
	_ = r.call(func() {
		for _, id := range r.order {
			if p := r.projects[id]; p.state == StateResolved {
				r.startProbe(p, false)
				n++
			}
		}
	})
	return n
}

// RecomputeLocation re-probes the resolved projects whose directory contains
// path (or is path). It returns the number of probes started.
func (r *Registry) RecomputeLocation(path string) int {
	abs, err := normalizeLocation(path)
	if err != nil {
		return 0
	}
	n := 0
	_ = r.call(func() {
		for _, id := range r.order {
			p := r.projects[id]
			if p.state != StateResolved || !within(p.location, abs) {
				continue
			}
			r.startProbe(p, false)
			n++
		}
	})
	return n
}

func within(dir, path string) bool {
	if dir == path {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
