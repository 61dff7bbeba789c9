package state

import "errors"

var (
	ErrNoSelection      = errors.New("no scenario selected")
	ErrUnknownStepType  = errors.New("unknown step type")
	ErrInvalidSelection = errors.New("selection references a missing entity")
	ErrDuplicateID      = errors.New("identifier already in use")
	ErrNilWorkspace     = errors.New("workspace cannot be nil")
)
