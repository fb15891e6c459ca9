package tasks

import "errors"

var (
	// ErrTeamNotFound is returned when the referenced team has no
	// registered config.
	ErrTeamNotFound = errors.New("team does not exist")
	// ErrTaskNotFound is returned when the referenced task id has no
	// task file.
	ErrTaskNotFound = errors.New("task does not exist")
	// ErrEmptySubject is returned by Create when subject is blank.
	ErrEmptySubject = errors.New("task subject must not be empty")
	// ErrSelfReference is returned when a task is declared to block or
	// be blocked by itself.
	ErrSelfReference = errors.New("task cannot reference itself")
	// ErrCycle is returned when an edge would create a dependency
	// cycle.
	ErrCycle = errors.New("edge would create a circular dependency")
	// ErrInvalidStatus is returned for a status value outside the
	// known set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrStatusRegression is returned when a transition would move the
	// status backward.
	ErrStatusRegression = errors.New("cannot move task status backward")
	// ErrBlocked is returned when a task can't move to in_progress or
	// completed because a blocker is not yet completed.
	ErrBlocked = errors.New("task is blocked by an incomplete dependency")
)
