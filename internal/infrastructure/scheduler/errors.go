package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrLockNotObtained is returned when another replica holds the leader lock
	ErrLockNotObtained = errors.New("leader lock held by another replica")
)
