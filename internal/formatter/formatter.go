// package formatter renders run reports as CSV or styled text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/tasks"
)

var reportHeaders = []string{"user_id", "first_name", "platform", "status", "reason", "playlist_id", "playlist_url", "tracks", "persisted", "notified"}

// RunReportToCSV converts a [tasks.RunReport] to CSV, one row per user.
func RunReportToCSV(report *tasks.RunReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(reportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, res := range report.Results {
		record := []string{
			res.UserID,
			res.FirstName,
			res.Platform.String(),
			res.Status.String(),
			res.Reason,
			res.PlatformPlaylistID,
			res.PlaylistURL,
			strconv.Itoa(len(res.Tracks)),
			strconv.FormatBool(res.Persisted),
			strconv.FormatBool(res.Notified),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteRunReportCSV writes the CSV rendering of report to path.
func WriteRunReportCSV(report *tasks.RunReport, path string) error {
	data, err := RunReportToCSV(report)
	if err != nil {
		return fmt.Errorf("failed to generate CSV: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RunReportToText renders a summary line followed by one line per user.
func RunReportToText(report *tasks.RunReport) string {
	var b strings.Builder

	title := "Playlist run"
	if report.SessionID != "" {
		title += " for session " + report.SessionID
	}
	b.WriteString(styles.title.Render(title) + "\n")

	summary := fmt.Sprintf("%d succeeded, %d fallback, %d failed", report.Count(tasks.StatusSucceeded), report.Count(tasks.StatusFallback), report.Count(tasks.StatusFailed))
	if !report.FinishedAt.IsZero() {
		summary += fmt.Sprintf(" in %s", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	}
	b.WriteString(styles.help.Render(summary) + "\n\n")

	for _, res := range report.Results {
		b.WriteString(resultLine(res) + "\n")
	}
	return b.String()
}

func resultLine(res tasks.Result) string {
	name := res.UserID
	if res.FirstName != "" {
		name = fmt.Sprintf("%s (%s)", res.FirstName, res.UserID)
	}

	switch res.Status {
	case tasks.StatusSucceeded:
		line := fmt.Sprintf("✓ %s: %d tracks %s", name, len(res.Tracks), res.PlaylistURL)
		if !res.Notified {
			line += " (not notified)"
		}
		return styles.ok.Render(line)
	case tasks.StatusFallback:
		return styles.warn.Render(fmt.Sprintf("~ %s: fallback %s", name, valueOr(res.PlaylistURL, "(none configured)")))
	default:
		return styles.err.Render(fmt.Sprintf("✗ %s: %s", name, res.Reason))
	}
}

// PlaylistToText lists a stored playlist's tracks in order with the friend who shared each.
func PlaylistToText(p *models.Playlist, url string, tracks []models.PlaylistTrack) string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Playlist "+p.PlatformPlaylistID) + "\n")

	origin := "catch-up"
	if p.SessionID != "" {
		origin = "session " + p.SessionID
	}
	b.WriteString(styles.help.Render(fmt.Sprintf("%s, %s, user %s, %s", p.Platform, origin, p.UserID, valueOr(url, "no link"))) + "\n\n")

	for _, t := range tracks {
		fmt.Fprintf(&b, "%2d. %s  (from %s)\n", t.Position+1, t.TrackID, t.SubmittedBy)
	}
	b.WriteString(styles.ok.Render(fmt.Sprintf("%d tracks", len(tracks))) + "\n")
	return b.String()
}

// SessionToText describes a newly opened session.
func SessionToText(res *tasks.SessionResult) string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Session "+res.Session.ID) + "\n")
	fmt.Fprintf(&b, "%s - %s\n", res.Session.Start.Format(time.RFC1123), res.Session.End.Format(time.RFC1123))
	b.WriteString(styles.ok.Render(fmt.Sprintf("%d tokens issued", len(res.Tokens))) + "\n")
	return b.String()
}

// PlaysToText summarizes a plays collection run.
func PlaysToText(results []tasks.PlaysResult) string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Recent plays") + "\n")
	for _, r := range results {
		if r.Err != nil {
			b.WriteString(styles.err.Render(fmt.Sprintf("✗ %s: %v", r.UserID, r.Err)) + "\n")
			continue
		}
		b.WriteString(styles.ok.Render(fmt.Sprintf("✓ %s: %d fetched, %d new", r.UserID, r.Fetched, r.Added)) + "\n")
	}
	return b.String()
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
