// Package api implements the HTTP REST API and WebSocket server for the
// nooLite gateway.
//
// This package provides:
//   - REST endpoints for bulb CRUD, switching, brightness, color, effects
//     and pairing, at the same paths and with the same JSON envelope as
//     existing clients expect
//   - Location views grouping bulbs by their location field
//   - Health, metrics and audit endpoints under /api/v1
//   - WebSocket hub broadcasting registry events in real time
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Envelope
//
// Bulb endpoints answer with
//
//	{"success": true, "data": [bulb]}
//	{"success": false, "reason": "not_found"}
//
// A rejected input (brightness outside 0..100, malformed color, unknown
// state or command) returns the unchanged bulb with success true unless
// api.strict_validation is set, in which case it is a 400.
//
// # Graceful Degradation
//
// The server runs without MQTT, InfluxDB or the audit log. Only the
// endpoints backed by a missing component report it.
package api
