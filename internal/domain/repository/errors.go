package repository

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential = errors.New("missing required credential")
	ErrNotConfigured     = errors.New("notifier not configured")
	ErrChannelExists     = errors.New("channel already exists")
	ErrChannelNotFound   = errors.New("channel not found")
	ErrInvalidIdentifier = errors.New("invalid channel identifier")
	ErrLockTimeout       = errors.New("timed out waiting for store lock")
	ErrStopTimeout       = errors.New("timed out waiting for poll loop to stop")
)

// StorageError is an I/O or lock failure of the key-value store.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q failed: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SourceFetchError is an upstream failure for a single channel.
type SourceFetchError struct {
	ChannelID string
	Err       error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("failed to fetch channel %s: %v", e.ChannelID, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// ResolutionError means an identifier could not be mapped to a channel id.
type ResolutionError struct {
	Identifier string
	Err        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s: %v", e.Identifier, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// DispatchError is a failed notification attempt.
type DispatchError struct {
	Channel string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("failed to notify for %s: %v", e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
