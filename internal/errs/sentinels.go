// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation marks malformed caller input.
	ErrValidation = errors.New("validation")
)

// Upload pipeline sentinels.
var (
	// ErrSessionNotFound indicates there is no upload session for the id.
	ErrSessionNotFound = errors.New("upload session not found")

	// ErrSessionCommitted indicates the session was already turned into a video.
	ErrSessionCommitted = errors.New("upload session already committed")

	// ErrMissingChunk indicates a recorded chunk has no backing file.
	ErrMissingChunk = errors.New("missing chunk file")

	// ErrIncompleteUpload indicates chunk indices have a gap or the assembled size
	// differs from the declared total.
	ErrIncompleteUpload = errors.New("incomplete upload")

	// ErrChecksumMismatch indicates a supplied digest disagrees with the stored bytes.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrVideoNotFound indicates there is no artifact or catalog entry for the id.
	ErrVideoNotFound = errors.New("video not found")

	// ErrRangeNotSatisfiable indicates a byte range outside the artifact.
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")

	// ErrNotOwner indicates the principal does not own the session or video.
	ErrNotOwner = errors.New("not owner")

	// ErrEndpointNotFound indicates no route matches the request.
	ErrEndpointNotFound = errors.New("endpoint not found")
)
