package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidCursor = errors.New("invalid cursor")
)

// DataError is malformed or unrecoverable input found while cleaning.
type DataError struct {
	ReviewID string
	Field    string
	Err      error
}

func (e *DataError) Error() string {
	if e.ReviewID == "" {
		return fmt.Sprintf("data error: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("data error: review %s: %s: %v", e.ReviewID, e.Field, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// ScoringError is a per-record scorer failure. The labeler recovers from it.
type ScoringError struct {
	ReviewID string
	Err      error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring error: review %s: %v", e.ReviewID, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// JoinKind says how a review failed the 1:1 join.
type JoinKind string

const (
	JoinMissingThemes    JoinKind = "missing themes"
	JoinMissingSentiment JoinKind = "missing sentiment"
	JoinDuplicateResult  JoinKind = "duplicate result"
	JoinOrphanResult     JoinKind = "result for unknown review"
	JoinUnknownBank      JoinKind = "unknown bank"
)

type JoinError struct {
	ReviewID string
	Kind     JoinKind
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join error: review %s: %s", e.ReviewID, e.Kind)
}

// PersistenceError is a store failure. There is no fallback store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// StageError wraps any fatal error of a run with where it stopped.
type StageError struct {
	Stage     Stage
	Processed int
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed after %d records: %v", e.Stage, e.Processed, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
