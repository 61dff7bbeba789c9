package persistence

import "errors"

var (
	// Item errors
	ErrInvalidItemID = errors.New("invalid item ID")
	ErrItemNotFound  = errors.New("item not found")
	ErrNilPayload    = errors.New("payload cannot be nil")

	// Filter validation errors
	ErrInvalidLimit  = errors.New("limit cannot be negative")
	ErrInvalidOffset = errors.New("offset cannot be negative")

	// Adapter errors
	ErrSaveFailed      = errors.New("failed to save item")
	ErrLoadFailed      = errors.New("failed to load item")
	ErrDeleteFailed    = errors.New("failed to delete item")
	ErrUnknownProvider = errors.New("unknown storage provider")
)
