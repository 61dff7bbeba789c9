package dto

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errDisk = errors.New("disk full")

func TestAppError(t *testing.T) {
	err := Errorf(KindIO, "save", errDisk, "could not save %q", "backup")
	assert.Equal(t, `save: could not save "backup": disk full`, err.Error())
	assert.Equal(t, `could not save "backup": disk full`, UserMessage(err))
	assert.ErrorIs(t, err, errDisk)

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, KindIO, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errDisk))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain error", errDisk, "disk full"},
		{"only err", NewError(KindParse, "import", errDisk), "disk full"},
		{"only message", &AppError{Kind: KindConfiguration, Message: "select a scenario"}, "select a scenario"},
		{"empty", &AppError{Kind: KindIntegrity}, "integrity error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
