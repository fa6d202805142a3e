// Package repositories implements SQLite persistence for the echo pipeline.
//
// Key Implementations:
//   - [UserRepository] : accounts and onboarding eligibility
//   - [CredentialRepository] : per-platform OAuth tokens
//   - [FriendRepository] : the symmetric friend graph
//   - [SessionRepository] : sharing windows
//   - [TokenRepository] : submission tokens, the one-shot submission write and submission reads
//   - [PlaylistRepository] / [PlaylistTrackRepository] : batched playlist persistence
//   - [TrackPlayRepository] : idempotent listening history ingestion
//
// Batch inserts run in a single transaction so a failure leaves no partial rows.
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
