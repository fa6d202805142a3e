package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	OpenSession Phase = iota
	IssueTokens
	LoadUsers
	BuildPlaylist
	Persist
	Notify
	CollectPlays
)

func (p Phase) String() string {
	switch p {
	case OpenSession:
		return "open_session"
	case IssueTokens:
		return "issue_tokens"
	case LoadUsers:
		return "load_users"
	case BuildPlaylist:
		return "build_playlist"
	case Persist:
		return "persist"
	case Notify:
		return "notify"
	case CollectPlays:
		return "collect_plays"
	default:
		return ""
	}
}

func openSessionUpdate(start, end string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   OpenSession,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Opening session %s - %s...", start, end),
	}
}

func issueTokensUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   IssueTokens,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Issued %d submission tokens", total),
	}
}

func loadUsersUpdate(total int, sessionID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadUsers,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d submitters for session %s", total, sessionID),
	}
}

func userResultUpdate(step, total int, res Result) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, res.UserID, len(res.Tracks))
	switch res.Status {
	case StatusFailed:
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, res.UserID, res.Reason)
	case StatusFallback:
		msg = fmt.Sprintf("[%d/%d] ~ %s (fallback playlist)", step, total, res.UserID)
	}
	return ProgressUpdate{
		Phase:   BuildPlaylist,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}

func persistUpdate(playlists, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Persist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saved %d playlists with %d tracks", playlists, tracks),
	}
}

func notifyUpdate(step, total int, userID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Notify,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Notified %s", step, total, userID),
	}
}

func collectPlaysUpdate(step, total int, userID string, added int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CollectPlays,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %d new plays", step, total, userID, added),
	}
}
