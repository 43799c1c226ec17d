package project

import (
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/cubepio/internal/stage"
)

// ID is the stable identity of a project. Indices shift on removal; IDs never do.
type ID = uuid.UUID

// project holds the control fields of one project. Only the registry loop
// touches it.
type project struct {
	id          ID
	location    string
	displayName string
	fromStartup bool
	state       State

	report stage.Report

	actionRunning       bool
	currentAction       string
	actionStarted       time.Time
	lastAction          string
	lastActionSucceeded bool

	log []string

	// probeSeq is the sequence number of the newest probe issued, appliedSeq
	// of the newest applied. forceSeq, when non-zero, is the probe issued
	// after an action; applying it or any later one always emits StageChanged.
	probeSeq   uint64
	appliedSeq uint64
	forceSeq   uint64
}

// Snapshot is an immutable copy of a project's observable state.
type Snapshot struct {
	ID          ID     `json:"id"`
	Index       int    `json:"index"`
	Location    string `json:"location"`
	DisplayName string `json:"display_name"`
	FromStartup bool   `json:"from_startup"`
	State       State  `json:"state"`

	Loading        bool `json:"loading"`
	Invalid        bool `json:"invalid"`
	PendingRemoval bool `json:"pending_removal"`

	ActionRunning       bool   `json:"action_running"`
	CurrentAction       string `json:"current_action,omitempty"`
	LastAction          string `json:"last_action,omitempty"`
	LastActionSucceeded bool   `json:"last_action_succeeded"`

	// Report is zero while loading or invalid.
	Report    stage.Report `json:"report"`
	Current   stage.Stage  `json:"current"`
	LogLength int          `json:"log_length"`
}

func (p *project) snapshot(index int) Snapshot {
	s := Snapshot{
		ID:                  p.id,
		Index:               index,
		Location:            p.location,
		DisplayName:         p.displayName,
		FromStartup:         p.fromStartup,
		State:               p.state,
		Loading:             p.state == StateLoading,
		Invalid:             p.state == StateInvalid || p.state == StatePendingRemoval,
		PendingRemoval:      p.state == StatePendingRemoval,
		ActionRunning:       p.actionRunning,
		CurrentAction:       p.currentAction,
		LastAction:          p.lastAction,
		LastActionSucceeded: p.lastActionSucceeded,
		Current:             stage.Undefined,
		LogLength:           len(p.log),
	}
	if p.state == StateResolved {
		s.Report = p.report
		s.Current = p.report.Current()
	} else if s.Invalid {
		s.Report = stage.InvalidReport()
	}
	return s
}
