// Package models defines the domain entities of the echo pipeline.
//
//   - [User] : an account linked to one streaming [Platform]
//   - [Credential] : OAuth tokens with expiry for a user's platform
//   - [Friendship] : a directed edge of the symmetric friend graph
//   - [Session] : a time-boxed sharing window
//   - [SubmissionToken] : a one-time token a user spends to share a track in a session
//   - [Submission] : a shared track as read by the aggregator
//   - [Playlist] / [PlaylistTrack] : generated playlists and their contents
//   - [TrackPlay] : listening history pulled from a platform
//
// Persisted entities implement [Model] so repositories can validate before writing.
package models
