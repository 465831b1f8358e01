package attendance

import "errors"

var (
	ErrIncompleteScan      = errors.New("incomplete scan data")
	ErrTagNotRegistered    = errors.New("tag not registered")
	ErrDeviceNotRecognized = errors.New("device not recognized")
	ErrNoActiveSession     = errors.New("no active session")
	// ErrDuplicateRecord is returned by a LedgerStore when the key already holds a record.
	ErrDuplicateRecord = errors.New("attendance already recorded")
)
