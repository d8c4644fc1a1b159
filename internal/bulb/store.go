package bulb

import "context"

// Record is one stored bulb as the store sees it: an id and an opaque
// serialised body. The bulb package owns the body format.
type Record struct {
	ID   uint64
	Data []byte
}

// Store persists bulb records and the id counter.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// GetAll returns every stored record in ascending id order.
	GetAll(ctx context.Context) ([]Record, error)

	// Get returns the body stored under id, or ErrNotFound.
	Get(ctx context.Context, id uint64) ([]byte, error)

	// Put replaces the body of an existing record. Returns ErrNotFound if
	// id is not stored.
	Put(ctx context.Context, id uint64, data []byte) error

	// Create stores a new record and reserves channel for it in one atomic
	// step. Returns ErrChannelTaken if a live record already owns channel
	// and ErrExists if id is in use.
	Create(ctx context.Context, id uint64, channel int, data []byte) error

	// Delete removes one record and releases its channel. It reports
	// whether a record was removed.
	Delete(ctx context.Context, id uint64) (bool, error)

	// DeleteAll removes every record and resets the id counter. It reports
	// whether any record was removed.
	DeleteAll(ctx context.Context) (bool, error)

	// NextID atomically increments and returns the id counter. The first
	// id after a reset is 1.
	NextID(ctx context.Context) (uint64, error)
}
