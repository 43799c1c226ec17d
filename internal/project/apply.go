package project

import (
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/cubepio/internal/action"
	"git.home.luguber.info/inful/cubepio/internal/events"
	"git.home.luguber.info/inful/cubepio/internal/logfields"
	"git.home.luguber.info/inful/cubepio/internal/metrics"
	"git.home.luguber.info/inful/cubepio/internal/stage"
)

// transition moves p along the FSM. Illegal transitions are logged and ignored.
func (r *Registry) transition(p *project, evt Event) bool {
	to, err := next(p.state, evt)
	if err != nil {
		slog.Error("Rejected project transition", logfields.ProjectID(p.id.String()), logfields.Error(err))
		return false
	}
	slog.Debug("Project state changed",
		logfields.ProjectID(p.id.String()),
		slog.String("from", string(p.state)),
		logfields.State(string(to)))
	p.state = to
	return true
}

// startProbe runs the prober off-loop. force marks a post-action recompute,
// which always emits StageChanged.
func (r *Registry) startProbe(p *project, force bool) {
	p.probeSeq++
	seq, id, loc := p.probeSeq, p.id, p.location
	if force {
		p.forceSeq = seq
	}

	r.workers.Add(1)
	go func() {
		defer r.workers.Done()
		start := time.Now()
		rep, err := r.prober.Probe(r.ctx, loc)
		r.recorder.ObserveProbeDuration(time.Since(start))
		r.post(func() { r.applyProbe(id, seq, rep, err) })
	}()
}

func (r *Registry) applyProbe(id ID, seq uint64, rep stage.Report, err error) {
	p, ok := r.projects[id]
	if !ok || seq <= p.appliedSeq {
		r.recorder.IncProbeOutcome(metrics.ProbeStale)
		return
	}
	if err != nil {
		r.recorder.IncProbeOutcome(metrics.ProbeCanceled)
		slog.Debug("Probe aborted", logfields.ProjectID(id.String()), logfields.Error(err))
		return
	}
	p.appliedSeq = seq
	force := p.forceSeq != 0 && seq >= p.forceSeq
	if force {
		p.forceSeq = 0
	}
	rep = rep.Normalized()
	if rep.Invalid {
		r.recorder.IncProbeOutcome(metrics.ProbeInvalid)
	} else {
		r.recorder.IncProbeOutcome(metrics.ProbeValid)
	}

	switch p.state {
	case StateLoading:
		r.resolve(p, rep)
	case StateResolved:
		if rep.Invalid {
			if r.transition(p, EventInvalidated) {
				p.report = stage.Report{}
				slog.Warn("Project became invalid", logfields.ProjectID(id.String()), logfields.Location(p.location))
				r.emitStages(p, true)
			}
			return
		}
		changed := !rep.Equal(p.report)
		p.report = rep
		if changed || force {
			r.emitStages(p, false)
		}
	default:
		// Invalid and pending removal are terminal until removal.
	}
}

// resolve ends the loading phase exactly once.
func (r *Registry) resolve(p *project, rep stage.Report) {
	evt := EventResolved
	if rep.Invalid {
		evt = EventInvalidated
	}
	if !r.transition(p, evt) {
		return
	}
	p.displayName = filepath.Base(p.location)
	if !rep.Invalid {
		p.report = rep
	}
	slog.Info("Project resolved",
		logfields.ProjectID(p.id.String()),
		logfields.Location(p.location),
		logfields.State(string(p.state)),
		logfields.Stage(p.report.Current().String()))
	r.outbox.Push(events.NameResolved{
		Header:      events.NewHeader(p.id),
		DisplayName: p.displayName,
		Invalid:     rep.Invalid,
	})
	r.emitStages(p, false)
}

func (r *Registry) emitStages(p *project, needsConfirmation bool) {
	invalid := p.state == StateInvalid || p.state == StatePendingRemoval
	evt := events.StageChanged{
		Header:                   events.NewHeader(p.id),
		Current:                  stage.Undefined,
		Invalid:                  invalid,
		NeedsRemovalConfirmation: needsConfirmation,
	}
	if invalid {
		evt.Report = stage.InvalidReport()
	} else {
		evt.Report = p.report
		evt.Current = p.report.Current()
	}
	r.outbox.Push(evt)
}

// run dispatches an action. Called on the loop.
func (r *Registry) run(p *project, name string, args []string) error {
	if !r.executor.Has(name) {
		return ErrUnknownAction.WithContext("action", name)
	}
	if !p.state.CanRun() {
		if p.state == StateLoading {
			return ErrNotReady.WithContext("project_id", p.id.String())
		}
		return ErrInvalidProject.WithContext("project_id", p.id.String())
	}
	if p.actionRunning {
		return ErrActionBusy.WithContext("running", p.currentAction)
	}

	msgs, err := r.executor.Execute(r.ctx, action.Request{Location: p.location, Action: name, Args: args})
	if err != nil {
		return err
	}
	p.actionRunning = true
	p.currentAction = name
	p.actionStarted = time.Now()
	slog.Info("Action started", logfields.ProjectID(p.id.String()), logfields.Action(name))
	r.outbox.Push(events.ActionStarted{Header: events.NewHeader(p.id), Action: name, Args: args})

	id := p.id
	r.workers.Add(1)
	go func() {
		defer r.workers.Done()
		for msg := range msgs {
			// Keep draining after close so the executor goroutine can finish.
			r.post(func() { r.applyMessage(id, name, msg) })
		}
	}()
	return nil
}

func (r *Registry) applyMessage(id ID, name string, msg action.Message) {
	p, ok := r.projects[id]
	if !ok {
		return
	}
	if !msg.Done {
		p.log = append(p.log, msg.Line)
		r.outbox.Push(events.LogAppended{Header: events.NewHeader(id), Seq: len(p.log) - 1, Line: msg.Line, Level: msg.Level})
		return
	}

	elapsed := time.Since(p.actionStarted)
	p.actionRunning = false
	p.currentAction = ""
	p.lastAction = name
	p.lastActionSucceeded = msg.Success

	result := events.ActionResult{
		Header:   events.NewHeader(id),
		Action:   name,
		Success:  msg.Success,
		Duration: elapsed,
	}
	if msg.Err != nil {
		result.Error = msg.Err.Error()
	}
	slog.Info("Action finished",
		logfields.ProjectID(id.String()),
		logfields.Action(name),
		logfields.Success(msg.Success),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	r.outbox.Push(result)

	// A failed action may still have changed the directory.
	if p.state == StateResolved {
		r.startProbe(p, true)
	}
}

// errNotFound builds the error for a stale handle.
func errNotFound(id ID) error {
	return ErrIndex.WithContext("project_id", id.String())
}
