// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/notify"
	"github.com/desertthunder/echo/internal/services"
	"github.com/desertthunder/echo/internal/shared"
)

// NewTestDB opens a migrated in-memory database that is closed when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// CreatedPlaylist records a call to [FakePlatform.CreatePlaylist].
type CreatedPlaylist struct {
	ID             string
	AccessToken    string
	PlatformUserID string
	Spec           services.PlaylistSpec
}

// FakePlatform is a test double for [services.Platform]. Failures are keyed by access token,
// which identifies the user making the call.
type FakePlatform struct {
	PlatformName   models.Platform
	Refresh        func(refreshToken string) (*services.Tokens, error)
	ProfileID      string
	FailCreate     map[string]error
	FailPopulate   map[string]error
	Recent         []services.Track
	RecentErr      error
	SearchResults  []services.Track
	ExchangeTokens *services.Tokens

	mu        sync.Mutex
	next      int
	Created   []CreatedPlaylist
	Populated map[string][]string
	Refreshed []string
}

// NewFakePlatform creates a [FakePlatform] that succeeds at everything.
func NewFakePlatform(name models.Platform) *FakePlatform {
	return &FakePlatform{PlatformName: name, ProfileID: "profile", Populated: map[string][]string{}}
}

func (f *FakePlatform) Name() models.Platform { return f.PlatformName }

func (f *FakePlatform) AuthURL(state string) string { return "https://auth.example/authorize?state=" + state }

func (f *FakePlatform) GetTokens(_ context.Context, code string) (*services.Tokens, error) {
	if f.ExchangeTokens == nil {
		return nil, fmt.Errorf("%w: code %s rejected", shared.ErrAuthFailed, code)
	}
	return f.ExchangeTokens, nil
}

func (f *FakePlatform) RefreshTokens(_ context.Context, refreshToken string) (*services.Tokens, error) {
	f.mu.Lock()
	f.Refreshed = append(f.Refreshed, refreshToken)
	f.mu.Unlock()

	if f.Refresh == nil {
		return nil, fmt.Errorf("%w: no refresh configured", shared.ErrRefreshFailed)
	}
	return f.Refresh(refreshToken)
}

func (f *FakePlatform) GetUserID(context.Context, string) (string, error) {
	return f.ProfileID, nil
}

func (f *FakePlatform) CreatePlaylist(_ context.Context, accessToken, platformUserID string, spec services.PlaylistSpec) (string, error) {
	if err := f.FailCreate[accessToken]; err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("pl-%d", f.next)
	f.Created = append(f.Created, CreatedPlaylist{ID: id, AccessToken: accessToken, PlatformUserID: platformUserID, Spec: spec})
	return id, nil
}

func (f *FakePlatform) PopulatePlaylist(_ context.Context, accessToken, playlistID string, trackIDs []string) error {
	if err := f.FailPopulate[accessToken]; err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Populated[playlistID] = append([]string(nil), trackIDs...)
	return nil
}

func (f *FakePlatform) GetRecentTracks(context.Context, string) ([]services.Track, error) {
	return f.Recent, f.RecentErr
}

func (f *FakePlatform) SearchTracks(context.Context, string) ([]services.Track, error) {
	return f.SearchResults, nil
}

func (f *FakePlatform) PlaylistURL(playlistID string) string {
	return "https://fake.example/playlist/" + playlistID
}

// PlaylistFor returns the playlist created with the given access token.
func (f *FakePlatform) PlaylistFor(accessToken string) (CreatedPlaylist, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Created {
		if c.AccessToken == accessToken {
			return c, true
		}
	}
	return CreatedPlaylist{}, false
}

// RecordingNotifier keeps every notification it is asked to deliver.
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []notify.Notification
	Err  error
}

func (r *RecordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, n)
	return nil
}

// Users returns the ids of notified users in delivery order.
func (r *RecordingNotifier) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.Sent))
	for i, n := range r.Sent {
		ids[i] = n.UserID
	}
	return ids
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
