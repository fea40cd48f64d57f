package conversation

import "errors"

var (
	// ErrTurnInFlight rejects a second question while one is being answered.
	ErrTurnInFlight = errors.New("a question is already being answered")
	// ErrEmptyQuestion rejects blank input.
	ErrEmptyQuestion = errors.New("question is empty")
)
