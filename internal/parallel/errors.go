package parallel

import "errors"

var (
	// ErrResource is returned when a worker set cannot be created with the
	// requested size.
	ErrResource = errors.New("parallel: cannot create workers")
	// ErrLifecycle is returned by Run after the dispatcher was killed or closed.
	ErrLifecycle = errors.New("parallel: dispatcher is killed")
	// ErrRange is returned when end < begin.
	ErrRange = errors.New("parallel: invalid range")
)
