// Package bulb manages nooLite bulbs: channel allocation, the persisted
// records and the operations that turn into RF frames.
//
// A Registry sits between a Store (SQLite or Redis) and a Transmitter.
// Each of the 32 transmitter channels is owned by at most one bulb; Create
// hands out the lowest free one and reserves it atomically in the store.
//
// Records are stored as versioned JSON. Older shapes (binded as 0/1,
// numeric strings, a "channels" array) are normalised once when loaded.
//
// Errors:
//   - ErrNotFound: no record for the id
//   - ErrNoChannelAvailable: all channels owned
//   - ErrValidationRejected: bad state, brightness, color or command; the
//     unchanged bulb is returned alongside
//   - ErrDevice: transmit failed after the change was persisted
//   - ErrSerialization: a stored record is malformed
package bulb
