package out

import (
	"context"
	"time"
)

// CursorStore persists the last-processed change-log cursor and the
// deployment reset marker. The cursor document is overwritten wholesale.
type CursorStore interface {
	// Load returns the stored cursor, "" when none exists.
	Load(ctx context.Context) (string, error)

	// Save overwrites the stored cursor.
	Save(ctx context.Context, cursor string) error

	// Clear removes the stored cursor. Used only by the explicit reset
	// operation.
	Clear(ctx context.Context) error

	// MarkReset records that the cursor was cleared on purpose.
	MarkReset(ctx context.Context) error

	// WasReset reports whether a reset marker is present.
	WasReset(ctx context.Context) (bool, error)

	// ClearReset removes the reset marker.
	ClearReset(ctx context.Context) error
}

// MessageLocker serializes message processing across worker instances using
// atomic create-if-absent markers. Acquire never surfaces errors: a conflict
// or any backend failure yields false.
type MessageLocker interface {
	// Acquire attempts to create the lock marker for id. True means this
	// instance owns the message.
	Acquire(ctx context.Context, id string) bool

	// Release deletes the marker, tolerating absence.
	Release(ctx context.Context, id string)

	// Age returns the elapsed time since the lock was created. ok is false
	// when no lock exists.
	Age(ctx context.Context, id string) (age time.Duration, ok bool)
}
