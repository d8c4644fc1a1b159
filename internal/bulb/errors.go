package bulb

import "errors"

// Domain errors for the bulb package.
//
// Registry methods wrap these with context; check them with errors.Is:
//
//	if errors.Is(err, bulb.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when no record exists for a bulb id.
	ErrNotFound = errors.New("bulb: not found")

	// ErrNoChannelAvailable is returned by Create when all 32 channels are owned.
	ErrNoChannelAvailable = errors.New("bulb: no channel available")

	// ErrValidationRejected marks a mutation whose input was out of range or
	// malformed. The bulb returned alongside it is unchanged.
	ErrValidationRejected = errors.New("bulb: validation rejected")

	// ErrDevice marks a transmit failure. The state change it accompanies
	// has already been persisted.
	ErrDevice = errors.New("bulb: device error")

	// ErrSerialization is returned when a stored record cannot be decoded
	// or violates the bulb invariants. It is scoped to that one record.
	ErrSerialization = errors.New("bulb: serialization error")

	// ErrChannelTaken is returned by Store.Create when another live bulb
	// already owns the channel.
	ErrChannelTaken = errors.New("bulb: channel taken")

	// ErrExists is returned by Store.Create when the id is already in use.
	ErrExists = errors.New("bulb: already exists")
)
