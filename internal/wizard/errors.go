package wizard

import "errors"

var (
	// ErrConfiguration covers a plan without sources and a missing or unknown agent.
	ErrConfiguration   = errors.New("configuration error")
	ErrUnknownStep     = errors.New("unknown step")
	ErrSessionComplete = errors.New("analysis session is complete")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrBadRequest      = errors.New("bad request")
)
