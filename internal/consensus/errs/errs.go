// Package errs defines the sentinel error kinds used across the consensus core.
package errs

import "errors"

var (
	// ErrMissingData is returned when a required ancestor block, transaction,
	// or coin entry could not be located through a collaborator interface.
	ErrMissingData = errors.New("missing data")
	// ErrKernelCheckFailed is returned when the kernel hash predicate fails.
	ErrKernelCheckFailed = errors.New("kernel check failed")
	// ErrModifierUnavailable is returned when a stake modifier for the
	// requested epoch cannot be resolved.
	ErrModifierUnavailable = errors.New("stake modifier unavailable")
	// ErrCheckpointMismatch is returned when a computed stake modifier
	// checksum disagrees with a hardcoded checkpoint.
	ErrCheckpointMismatch = errors.New("stake modifier checkpoint mismatch")
	// ErrInsufficientStake is returned when a validator does not meet the
	// minimum stake requirement.
	ErrInsufficientStake = errors.New("insufficient stake")
	// ErrValidatorNotFound is returned when a validator ID has no registry entry.
	ErrValidatorNotFound = errors.New("validator not found")
	// ErrScriptVerifyFailed is returned when coinstake script verification fails.
	ErrScriptVerifyFailed = errors.New("script verification failed")
	// ErrIO is returned when a collaborator interface fails for I/O reasons
	// unrelated to consensus validity.
	ErrIO = errors.New("io error")
)
