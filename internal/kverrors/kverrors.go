// Package kverrors defines the sentinel error values shared across the
// storage engine's packages, per the engine's error handling design:
// IoError and FormatError are not modeled as sentinels here because
// Go's wrapped *PathError/*os.LinkError and record.ErrMalformed already
// carry that information through errors.Is/errors.As.
package kverrors

import "errors"

var (
	// ErrCorruptName marks a non-numeric .sst filename. Files triggering
	// this are ignored for file-number allocation purposes, not treated
	// as fatal.
	ErrCorruptName = errors.New("amethystkv: corrupt sstable filename")

	// ErrAlreadyRunning is returned by a background actor's Start when it
	// is already running.
	ErrAlreadyRunning = errors.New("amethystkv: actor already running")

	// ErrNotRunning is returned by a background actor's Stop when it was
	// never started or has already stopped.
	ErrNotRunning = errors.New("amethystkv: actor not running")
)
