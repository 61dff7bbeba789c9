package plugin

import "errors"

var (
	ErrPluginNotFound   = errors.New("step type not registered")
	ErrUnconfiguredStep = errors.New("step has no type configured")
	ErrNilPlugin        = errors.New("plugin cannot be nil")
	ErrInvalidAnswer    = errors.New("answer not accepted by step")
	ErrNotInteractive   = errors.New("step does not accept answers")
	ErrAlreadyCompleted = errors.New("step activation already completed")
)
