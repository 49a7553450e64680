package session

import "errors"

var (
	// ErrKindMismatch is returned when a payload does not match the selected
	// source type.
	ErrKindMismatch = errors.New("payload does not match selected source type")

	// ErrNoSource is returned when an operation needs a source and none is set.
	ErrNoSource = errors.New("no source selected")

	// ErrNoStory is returned when narration is requested before a story exists.
	ErrNoStory = errors.New("no story to narrate")

	// ErrBusy is returned while a generation or synthesis is already in flight.
	ErrBusy = errors.New("operation already in progress")

	// ErrStale is returned when a result arrives after the source was reset.
	// The result is discarded.
	ErrStale = errors.New("result discarded: source changed")

	// ErrEmptyMessage is returned for blank chat messages.
	ErrEmptyMessage = errors.New("message is empty")
)
