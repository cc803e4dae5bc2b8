package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, locks, and collaborator
// adapters return these (optionally wrapped) so services can translate them
// into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: concurrent writer won, lock busy, or version mismatch
// - ErrExpired: session/token past its expiry instant
// - ErrAlreadyUsed: single-use resource (verification session) already consumed
// - ErrInvalidState: entity in wrong state for requested operation (e.g. burned)
// - ErrUnavailable: collaborator (ledger, scorer, extractor) failed or timed out
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
