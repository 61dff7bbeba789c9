package transfer

import "errors"

var (
	// Parse errors
	ErrMalformedPayload   = errors.New("malformed import payload")
	ErrMissingItems       = errors.New("import payload has no items")
	ErrUnsupportedVersion = errors.New("unsupported interchange version")

	// Reconcile errors
	ErrNoScenarios   = errors.New("no scenarios found")
	ErrNoTarget      = errors.New("target workspace is required")
	ErrUnknownMode   = errors.New("unknown import mode")
	ErrUnknownPolicy = errors.New("unknown edge policy")
)
