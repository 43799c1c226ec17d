// Package daemon wires the project registry to its collaborators: the
// SQLite store, the file watcher, the refresh scheduler, the NATS bridge and
// the Prometheus endpoint.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/cubepio/internal/action"
	"git.home.luguber.info/inful/cubepio/internal/bridge"
	"git.home.luguber.info/inful/cubepio/internal/config"
	"git.home.luguber.info/inful/cubepio/internal/events"
	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/logfields"
	"git.home.luguber.info/inful/cubepio/internal/metrics"
	"git.home.luguber.info/inful/cubepio/internal/probe"
	"git.home.luguber.info/inful/cubepio/internal/project"
	"git.home.luguber.info/inful/cubepio/internal/scheduler"
	"git.home.luguber.info/inful/cubepio/internal/store"
	"git.home.luguber.info/inful/cubepio/internal/watch"
)

// Status is the daemon lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

const subscriberBuffer = 256

// Daemon runs the registry for "cubepio serve".
type Daemon struct {
	cfg       *config.Config
	status    atomic.Value // Status
	startTime time.Time
	mu        sync.Mutex

	bus       *events.Bus
	registry  *project.Registry
	executor  *action.Executor
	store     *store.Store
	watcher   *watch.Watcher
	scheduler *scheduler.Scheduler
	publisher bridge.Publisher
	natsConn  *nats.Conn
	promReg   *prom.Registry
	http      *http.Server

	workers   WorkerGroup
	closed    bool
	subCtx    context.Context
	subCancel context.CancelFunc
	onEvent   func(events.ProjectEvent)
}

// Option customizes a Daemon.
type Option func(*options)

type options struct {
	runner    action.ToolRunner
	prober    probe.Prober
	publisher bridge.Publisher
	onEvent   func(events.ProjectEvent)
}

// WithRunner replaces the tool runner used by actions.
func WithRunner(r action.ToolRunner) Option { return func(o *options) { o.runner = r } }

// WithProber replaces the filesystem stage probe.
func WithProber(p probe.Prober) Option { return func(o *options) { o.prober = p } }

// WithPublisher forwards events to p instead of dialing notifications.nats_url.
func WithPublisher(p bridge.Publisher) Option { return func(o *options) { o.publisher = p } }

// WithEventHandler is called for every project event, after it was logged.
func WithEventHandler(fn func(events.ProjectEvent)) Option {
	return func(o *options) { o.onEvent = fn }
}

// New builds the daemon and opens the store. Nothing runs until Start.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("configuration is required").Build()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.prober == nil {
		o.prober = probe.New(cfg.Project.PlatformIOINIPatchContent)
	}

	d := &Daemon{
		cfg:       cfg,
		bus:       events.NewBus(),
		promReg:   prom.NewRegistry(),
		publisher: o.publisher,
		onEvent:   o.onEvent,
	}
	d.status.Store(StatusStopped)
	d.promReg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(d.promReg)

	execOpts := []action.Option{action.WithRecorder(recorder)}
	if o.runner != nil {
		execOpts = append(execOpts, action.WithRunner(o.runner))
	}
	d.executor = action.NewExecutor(cfg.ProjectDefaults(), execOpts...)

	regOpts := []project.Option{project.WithRecorder(recorder)}
	if cfg.Daemon.StorePath != "" {
		st, err := store.Open(cfg.Daemon.StorePath)
		if err != nil {
			return nil, err
		}
		d.store = st
		regOpts = append(regOpts, project.WithPersister(st))
	}
	d.registry = project.NewRegistry(o.prober, d.executor, d.bus, regOpts...)
	d.subCtx, d.subCancel = context.WithCancel(context.Background())
	return d, nil
}

// Registry returns the project registry.
func (d *Daemon) Registry() *project.Registry { return d.registry }

// Bus returns the notification bus.
func (d *Daemon) Bus() *events.Bus { return d.bus }

// Status returns the lifecycle state.
func (d *Daemon) Status() Status { return d.status.Load().(Status) }

// Uptime is the time since Start.
func (d *Daemon) Uptime() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startTime.IsZero() {
		return 0
	}
	return time.Since(d.startTime)
}

// Start launches subscribers, triggers and listeners, then restores the
// persisted project list.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ferrors.DaemonError("daemon was stopped and cannot be restarted").Build()
	}
	if d.Status() != StatusStopped {
		return ferrors.DaemonError("daemon already started").Build()
	}
	d.status.Store(StatusStarting)
	slog.Info("Starting daemon", "store", d.cfg.Daemon.StorePath)

	if err := d.startSubscribers(); err != nil {
		d.status.Store(StatusStopped)
		return err
	}
	if err := d.startTriggers(ctx); err != nil {
		d.status.Store(StatusStopped)
		return err
	}
	if err := d.startMetricsServer(); err != nil {
		d.status.Store(StatusStopped)
		return err
	}
	if err := d.restore(ctx); err != nil {
		d.status.Store(StatusStopped)
		return err
	}

	d.startTime = time.Now()
	d.status.Store(StatusRunning)
	slog.Info("Daemon running", slog.Int("projects", d.registry.Count()))
	return nil
}

func (d *Daemon) startSubscribers() error {
	ch, unsub := events.Subscribe[events.ProjectEvent](d.bus, subscriberBuffer)
	d.workers.Go("event-log", func() { d.consume(ch, unsub) })

	if d.store != nil && d.cfg.Daemon.RecordEvents {
		rec := store.NewRecorder(d.bus, d.store, subscriberBuffer)
		d.workers.Go("event-recorder", func() { rec.Run(d.subCtx) })
	}

	if d.publisher == nil && d.cfg.Notifications.NATSURL != "" {
		conn, err := bridge.Connect(d.cfg.Notifications.NATSURL)
		if err != nil {
			return err
		}
		d.natsConn = conn
		d.publisher = conn
	}
	if d.publisher != nil {
		fwd := bridge.NewForwarder(d.bus, d.publisher, d.cfg.Notifications.SubjectPrefix,
			d.cfg.Notifications.Retry.Policy(), subscriberBuffer)
		d.workers.Go("nats-bridge", func() { fwd.Run(d.subCtx) })
	}
	return nil
}

func (d *Daemon) startTriggers(ctx context.Context) error {
	if d.cfg.Daemon.Watch {
		w, err := watch.New(d.registry, d.cfg.Daemon.WatchDebounceDuration())
		if err != nil {
			return err
		}
		d.watcher = w
		w.Start(d.subCtx)
	}

	if interval := d.cfg.Daemon.RefreshIntervalDuration(); interval > 0 {
		s, err := scheduler.New()
		if err != nil {
			return err
		}
		if _, err := s.ScheduleRefresh(interval, d.registry); err != nil {
			_ = s.Stop(ctx)
			return err
		}
		d.scheduler = s
		s.Start(ctx)
	}
	return nil
}

func (d *Daemon) startMetricsServer() error {
	addr := d.cfg.Daemon.MetricsAddr
	if addr == "" {
		return nil
	}
	mux := metrics.NewServeMux(d.promReg, func() error {
		if st := d.Status(); st != StatusRunning {
			return fmt.Errorf("daemon %s", st)
		}
		return nil
	})
	d.http = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	d.workers.Go("metrics-http", func() {
		slog.Info("Metrics listening", "addr", addr)
		if err := d.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	})
	return nil
}

func (d *Daemon) restore(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	locations, err := d.store.LoadProjects(ctx)
	if err != nil {
		return err
	}
	for _, loc := range locations {
		if _, err := d.registry.AddFromStartup(loc); err != nil {
			slog.Warn("Failed to restore project", logfields.Location(loc), logfields.Error(err))
		}
	}
	if len(locations) > 0 {
		slog.Info("Restored projects", slog.Int("count", len(locations)))
	}
	return nil
}

// consume logs every event and keeps the watcher in step with the registry.
func (d *Daemon) consume(ch <-chan events.ProjectEvent, unsub func()) {
	defer unsub()
	for {
		select {
		case <-d.subCtx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			d.handle(evt)
		}
	}
}

func (d *Daemon) handle(evt events.ProjectEvent) {
	id := logfields.ProjectID(evt.ProjectID().String())
	switch e := evt.(type) {
	case events.ProjectAdded:
		slog.Info("Project added", id, logfields.Location(e.Location), logfields.Index(e.Index))
		if d.watcher != nil {
			if err := d.watcher.Add(e.Location); err != nil {
				slog.Warn("Cannot watch project", logfields.Location(e.Location), logfields.Error(err))
			}
		}
	case events.ProjectRemoved:
		slog.Info("Project removed", id, logfields.Location(e.Location))
		if d.watcher != nil {
			d.watcher.Remove(e.Location)
		}
	case events.NameResolved:
		slog.Info("Project resolved", id, "name", e.DisplayName, "invalid", e.Invalid)
	case events.ActionStarted:
		slog.Info("Action started", id, logfields.Action(e.Action))
	case events.LogAppended:
		slog.Debug("Action output", id, "line", e.Line, "level", e.Level)
	case events.ActionResult:
		slog.Info("Action finished", id, logfields.Action(e.Action), logfields.Success(e.Success),
			logfields.DurationMS(float64(e.Duration.Microseconds())/1000))
	case events.StageChanged:
		slog.Info("Stage changed", id, logfields.Stage(e.Current.String()), "invalid", e.Invalid)
	}
	if d.onEvent != nil {
		d.onEvent(evt)
	}
}

// Stop shuts everything down in reverse order. Pending notifications are
// delivered before subscribers exit.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Status() == StatusStopped {
		return d.closeResources(ctx)
	}
	d.status.Store(StatusStopping)
	slog.Info("Stopping daemon")

	var errs []error
	if d.scheduler != nil {
		if err := d.scheduler.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.http != nil {
		if err := d.http.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.closeResources(ctx); err != nil {
		errs = append(errs, err)
	}

	d.status.Store(StatusStopped)
	slog.Info("Daemon stopped", "uptime", time.Since(d.startTime).Round(time.Second).String())
	return errors.Join(errs...)
}

func (d *Daemon) closeResources(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true
	var errs []error
	if err := d.registry.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	// Closing the bus ends every subscriber loop once it drained its channel.
	d.bus.Close()
	if err := d.workers.StopAndWait(ctx); err != nil {
		errs = append(errs, err)
	}
	d.subCancel()
	if d.natsConn != nil {
		if err := d.natsConn.Drain(); err != nil {
			errs = append(errs, err)
		}
		d.natsConn = nil
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, err)
		}
		d.store = nil
	}
	return errors.Join(errs...)
}
