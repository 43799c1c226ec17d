package project

import (
	"git.home.luguber.info/inful/cubepio/internal/action"
	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
)

// Sentinel errors returned synchronously by Registry and Handle methods.
// Returned values may carry extra context; match them with errors.Is.
var (
	ErrDuplicate      = ferrors.AlreadyExistsError("project location already registered").Build()
	ErrIndex          = ferrors.NotFoundError("no project at index").Build()
	ErrActionBusy     = ferrors.BusyError("an action is already running for this project").Build()
	ErrInvalidProject = ferrors.ValidationError("project is invalid").Build()
	ErrNotReady       = ferrors.ValidationError("project is still loading").Build()
	ErrNotRemovable   = ferrors.ValidationError("only invalid projects can await removal").Build()
	ErrUnknownAction  = action.ErrUnknownAction
	ErrClosed         = ferrors.DaemonError("project registry is closed").Build()
)
