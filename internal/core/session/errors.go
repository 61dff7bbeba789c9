package session

import "errors"

var (
	ErrNoScenario      = errors.New("no scenario selected")
	ErrEmptyScenario   = errors.New("scenario has no steps")
	ErrAlreadyPlaying  = errors.New("session is already playing")
	ErrNotPlaying      = errors.New("session is not playing")
	ErrStaleStep       = errors.New("step is no longer current")
	ErrInvalidSnapshot = errors.New("invalid session snapshot")
	ErrNoSnapshot      = errors.New("no cached session")
)
