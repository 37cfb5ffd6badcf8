// Package audit implements async delivery of token lifecycle events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zerolog, no-op).
//   - [Dispatcher]: buffered async relay that either drops or blocks when full.
//   - [Event]: structured record with timestamp, type, user, token ID, IP and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does not decide which
// events to emit; the Engine and the flow functions do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goSession or any sibling internal package.
//   - Record encoded tokens or passwords.
package audit
