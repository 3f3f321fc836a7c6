// Package errors defines sentinel errors used across the broker.
package errors

import "errors"

// Sentinel errors for protocol handling.
var (
	// ErrUnknownTag indicates a frame carried neither the CLIENT nor WORKER
	// protocol tag.
	ErrUnknownTag = errors.New("unknown protocol tag")

	// ErrUnknownWorker indicates a WORKER frame (other than READY) arrived
	// from an unregistered worker identity.
	ErrUnknownWorker = errors.New("unknown worker")

	// ErrDuplicateReady indicates a worker sent READY while already
	// registered.
	ErrDuplicateReady = errors.New("duplicate READY")

	// ErrEmptyService indicates a READY frame named no service.
	ErrEmptyService = errors.New("empty service name on READY")

	// ErrRIDMismatch indicates a worker replied or rejected a rid it was
	// not assigned.
	ErrRIDMismatch = errors.New("rid not assigned to worker")

	// ErrUnknownCommand indicates a recognized tag carried an unrecognized
	// command byte.
	ErrUnknownCommand = errors.New("unknown command")
)

// Sentinel errors for request lifecycle.
var (
	// ErrRequestGone indicates validate observed the rid had already been
	// dropped or completed.
	ErrRequestGone = errors.New("request no longer present")

	// ErrRequestTimedOut indicates a request's deadline passed before
	// dispatch.
	ErrRequestTimedOut = errors.New("request timed out")

	// ErrRetryCeiling indicates a request exceeded rattempts against a
	// rejecting worker.
	ErrRetryCeiling = errors.New("retry attempts exceeded")
)

// Sentinel errors for transport and persistence.
var (
	// ErrClosed indicates the resource has been closed.
	ErrClosed = errors.New("resource is closed")

	// ErrNoRoute indicates Send had no known peer channel for a
	// destination identity.
	ErrNoRoute = errors.New("no route to peer")

	// ErrNotFound indicates a persistence or cache lookup found nothing.
	ErrNotFound = errors.New("not found")
)
