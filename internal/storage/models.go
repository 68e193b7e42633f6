package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// HistoryEntry is a value that was overwritten by a later Set.
type HistoryEntry struct {
	ID         int64
	Key        string
	Value      []byte // JSON as stored
	ReplacedAt time.Time
}
