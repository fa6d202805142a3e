// Spotify Web API implementation of [Platform]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/shared"
)

const (
	spotifyAuthURL     = "https://accounts.spotify.com/authorize"
	spotifyTokenURL    = "https://accounts.spotify.com/api/token"
	spotifyBaseURL     = "https://api.spotify.com/v1"
	spotifyPlaylistURL = "https://open.spotify.com/playlist/"

	// spotifyMaxTracksPerRequest is the add-items limit per call.
	spotifyMaxTracksPerRequest = 100
	spotifyRecentLimit         = 50
	spotifySearchLimit         = 10
)

var spotifyScopes = []string{
	"user-read-private",
	"user-read-recently-played",
	"playlist-modify-private",
	"playlist-modify-public",
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   SpotifyAlbum    `json:"album"`
	URI     string          `json:"uri"`
}

// SpotifyPlayHistory is one item of the recently-played endpoint.
type SpotifyPlayHistory struct {
	Track    SpotifyTrack `json:"track"`
	PlayedAt time.Time    `json:"played_at"`
}

type spotifyRecentlyPlayed struct {
	Items []SpotifyPlayHistory `json:"items"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyCreatePlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

type spotifyAddTracksRequest struct {
	URIs []string `json:"uris"`
}

// SpotifyPlaylist represents the subset of a created playlist we read back.
type SpotifyPlaylist struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// SpotifyPlatform implements [Platform] against the Spotify Web API.
//
// User tokens are exchanged and refreshed through [oauth2.Config]; catalog search uses an
// application token from the client-credentials grant. Outbound API calls share one rate limiter.
type SpotifyPlatform struct {
	config     *oauth2.Config
	appConfig  *clientcredentials.Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu       sync.Mutex
	appToken *oauth2.Token
}

// SpotifyOption customises a [SpotifyPlatform].
type SpotifyOption func(*SpotifyPlatform)

// WithHTTPClient sets the client used for both token and API requests.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyPlatform) { s.httpClient = c }
}

// NewSpotifyPlatform creates a Spotify client from configuration.
func NewSpotifyPlatform(c shared.SpotifyConfig, opts ...SpotifyOption) (*SpotifyPlatform, error) {
	if c.ClientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingCredentials)
	}
	if c.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client_secret", shared.ErrMissingCredentials)
	}

	authURL := valueOr(c.AuthURL, spotifyAuthURL)
	tokenURL := valueOr(c.TokenURL, spotifyTokenURL)

	limit := rate.Inf
	if c.RateLimit > 0 {
		limit = rate.Limit(c.RateLimit)
	}

	s := &SpotifyPlatform{
		config: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURI,
			Scopes:       spotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		appConfig: &clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		baseURL:    strings.TrimSuffix(valueOr(c.APIURL, spotifyBaseURL), "/"),
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(limit, 1),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyPlatform) Name() models.Platform { return models.PlatformSpotify }

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyPlatform) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// PlaylistURL returns the open.spotify.com link for a playlist.
func (s *SpotifyPlatform) PlaylistURL(playlistID string) string {
	return spotifyPlaylistURL + playlistID
}

// TrackURI returns the spotify:track URI for a track id.
func TrackURI(trackID string) string {
	return "spotify:track:" + trackID
}

// GetTokens exchanges an authorization code using the authorization_code grant.
func (s *SpotifyPlatform) GetTokens(ctx context.Context, code string) (*Tokens, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	tok, err := s.config.Exchange(s.tokenContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return s.tokens(tok), nil
}

// RefreshTokens uses the refresh_token grant. Spotify omits the refresh token when it is not
// rotated, in which case the result's RefreshToken echoes the one supplied.
func (s *SpotifyPlatform) RefreshTokens(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	src := s.config.TokenSource(s.tokenContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return s.tokens(tok), nil
}

// GetUserID returns the id of the token's owner from /me.
func (s *SpotifyPlatform) GetUserID(ctx context.Context, accessToken string) (string, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, accessToken, http.MethodGet, "/me", nil, &user); err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", fmt.Errorf("%w: profile response had no id", shared.ErrAPIRequest)
	}
	return user.ID, nil
}

// CreatePlaylist creates a playlist on the user's account.
func (s *SpotifyPlatform) CreatePlaylist(ctx context.Context, accessToken, platformUserID string, spec PlaylistSpec) (string, error) {
	if platformUserID == "" {
		return "", fmt.Errorf("%w: platform user id", shared.ErrMissingArgument)
	}

	body := spotifyCreatePlaylistRequest{Name: spec.Name, Description: spec.Description, Public: spec.Public}
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(platformUserID))

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, accessToken, http.MethodPost, endpoint, body, &playlist); err != nil {
		return "", err
	}
	if playlist.ID == "" {
		return "", fmt.Errorf("%w: create playlist response had no id", shared.ErrAPIRequest)
	}
	return playlist.ID, nil
}

// PopulatePlaylist adds tracks in order, batching at the API's per-request limit.
func (s *SpotifyPlatform) PopulatePlaylist(ctx context.Context, accessToken, playlistID string, trackIDs []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	for start := 0; start < len(trackIDs); start += spotifyMaxTracksPerRequest {
		end := min(start+spotifyMaxTracksPerRequest, len(trackIDs))

		uris := make([]string, 0, end-start)
		for _, id := range trackIDs[start:end] {
			uris = append(uris, TrackURI(id))
		}

		if err := s.doRequest(ctx, accessToken, http.MethodPost, endpoint, spotifyAddTracksRequest{URIs: uris}, nil); err != nil {
			return err
		}
	}
	return nil
}

// GetRecentTracks returns up to 50 recently played tracks.
func (s *SpotifyPlatform) GetRecentTracks(ctx context.Context, accessToken string) ([]Track, error) {
	endpoint := fmt.Sprintf("/me/player/recently-played?limit=%d", spotifyRecentLimit)

	var response spotifyRecentlyPlayed
	if err := s.doRequest(ctx, accessToken, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(response.Items))
	for _, item := range response.Items {
		t := toTrack(item.Track)
		t.PlayedAt = item.PlayedAt.UTC()
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// SearchTracks searches the catalog for tracks matching query.
func (s *SpotifyPlatform) SearchTracks(ctx context.Context, query string) ([]Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	token, err := s.applicationToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprint(spotifySearchLimit))

	var response spotifySearchResponse
	if err := s.doRequest(ctx, token, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		tracks = append(tracks, toTrack(item))
	}
	return tracks, nil
}

// applicationToken returns a cached client-credentials token, fetching a new one when expired.
func (s *SpotifyPlatform) applicationToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appToken.Valid() {
		return s.appToken.AccessToken, nil
	}

	tok, err := s.appConfig.Token(s.tokenContext(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: client credentials: %v", shared.ErrAuthFailed, err)
	}
	s.appToken = tok
	return tok.AccessToken, nil
}

// tokenContext carries the configured HTTP client into oauth2 token requests.
func (s *SpotifyPlatform) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func (s *SpotifyPlatform) tokens(tok *oauth2.Token) *Tokens {
	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 && !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry).Round(time.Second)
	}
	return &Tokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, ExpiresIn: ttl}
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyPlatform) doRequest(ctx context.Context, accessToken, method, endpoint string, body, result any) error {
	if accessToken == "" {
		return fmt.Errorf("%w: missing access token", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Platform: models.PlatformSpotify, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func toTrack(t SpotifyTrack) Track {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}

	track := Track{ID: t.ID, Name: t.Name, Artists: strings.Join(names, ", ")}
	if len(t.Album.Images) > 0 {
		track.AlbumImageURL = t.Album.Images[0].URL
	}
	return track
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
