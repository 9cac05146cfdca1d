package conversation

import "errors"

var (
	// ErrSequenceConflict is returned when an append races another writer
	// to the same (session_id, sequence_number). The caller must re-read
	// NextSequence and retry; the store never retries implicitly.
	ErrSequenceConflict = errors.New("sequence number already taken")

	// ErrSessionNotFound is returned when the session has no turns.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidParentRef is returned when a parent query reference does
	// not point backward within the same session.
	ErrInvalidParentRef = errors.New("parent query reference must point to an earlier turn in the same session")
)
