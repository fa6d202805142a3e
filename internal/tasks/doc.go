// Package tasks runs the scheduled session and playlist pipeline.
//
// # Core Operations
//
//  1. [SessionScheduler.Open] : opens a sharing session
//     - Inserts a session covering the configured daily window
//     - Issues one random submission token per onboarded user in a single batch
//     - Any datastore failure is returned to the caller
//
//  2. [PlaylistEngine.Generate] : builds playlists after a session closes
//     - Aggregates each submitter's friends' tracks ([Aggregator.SessionCapped])
//     - Ensures a fresh access token ([CredentialManager.EnsureValid]) before each platform call
//     - Creates and populates the playlist on the user's platform
//     - Persists playlists and their tracks in two batches, then notifies
//
//  3. [PlaylistEngine.Onboard] : one catch-up playlist for a newly onboarded user
//     built from [Aggregator.RecencyCatchup], or the fallback playlist reference
//
//  4. [PlaysCollector.Collect] : stores each user's recently played tracks
//
// # Failure Isolation
//
// Per-user failures (platform errors, refresh failures, unsupported platforms) become
// [Result] entries with [StatusFailed] and never stop the run. Datastore failures while
// opening a session or persisting playlists are fatal and returned.
//
// # Progress Reporting
//
// Long-running operations accept an optional channel of [ProgressUpdate]. Updates are sent
// with select/default so a slow reader never blocks the pipeline.
package tasks
