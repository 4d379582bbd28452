package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrDuplicateJob     = errors.New("job id already exists")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNoVisionProvider = errors.New("no vision provider configured")
	ErrUnknownProvider  = errors.New("unknown vision provider")
	ErrEmptyImage       = errors.New("empty image payload")
	ErrNoJSONInReply    = errors.New("no valid JSON found in model reply")
	ErrQueueFull        = errors.New("worker queue full")
)
