package querycache

import "time"

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry is a snapshot of one cached query. Value keeps the last successful
// result while a refetch is loading or after it failed.
type Entry struct {
	Key       string
	Value     any
	Status    Status
	Err       error
	UpdatedAt time.Time
	// Stale is set by invalidation and cleared by the next successful fetch.
	Stale bool
}

// HasValue reports whether a successful result has ever been stored.
func (e Entry) HasValue() bool {
	return e.Value != nil
}

// Fresh reports whether Fetch would serve e without I/O.
func (e Entry) Fresh() bool {
	return e.Status == StatusSuccess && !e.Stale
}

// ValueOf returns the entry value as T, or the zero T when the entry is empty
// or holds another type.
func ValueOf[T any](e Entry) T {
	v, _ := e.Value.(T)
	return v
}
