package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/echo/internal/notify"
	"github.com/desertthunder/echo/internal/repositories"
	"github.com/desertthunder/echo/internal/services"
	"github.com/desertthunder/echo/internal/shared"
	"github.com/desertthunder/echo/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	platforms   *services.Registry
	notifier    tasks.Notifier
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	db          *sql.DB
	now         tasks.Clock
	authTimeout time.Duration
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Platforms and DB are built from Config on first use when left nil.
type RunnerOpts struct {
	Config     *shared.Config
	Platforms  *services.Registry
	Notifier   tasks.Notifier
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB
	Now        tasks.Clock
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:      opts.Config,
		platforms:   opts.Platforms,
		notifier:    opts.Notifier,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		db:          opts.DB,
		now:         opts.Now,
		authTimeout: 2 * time.Minute,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, usersCommand, friendsCommand, authCommand, sessionCommand,
		playlistsCommand, onboardingCommand, playsCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig replaces the runner's config with the file named by --config, when it exists.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return ctx, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	if err := config.Validate(); err != nil {
		return ctx, err
	}
	if err := shared.ConfigureLogger(r.logger, config.Log); err != nil {
		return ctx, err
	}

	r.config = config
	return ctx, nil
}

// Close releases the database handle if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	return db, nil
}

// registry returns the platform clients, building them from config on first use.
//
// Spotify is left out when its client credentials are missing; users on it then fail with
// [shared.ErrUnsupportedPlatform] instead of the whole command.
func (r *Runner) registry() *services.Registry {
	if r.platforms != nil {
		return r.platforms
	}

	platforms := []services.Platform{services.NewAppleMusicPlatform()}
	spotify, err := services.NewSpotifyPlatform(r.config.Credentials.Spotify, services.WithHTTPClient(r.httpClient))
	if err != nil {
		r.logger.Warn("spotify disabled", "error", err)
	} else {
		platforms = append(platforms, spotify)
	}

	r.platforms = services.NewRegistry(platforms...)
	return r.platforms
}

// pipeline wires the repositories into the session, playlist and plays components.
type pipeline struct {
	users       *repositories.UserRepository
	friends     *repositories.FriendRepository
	credentials *repositories.CredentialRepository
	scheduler   *tasks.SessionScheduler
	engine      *tasks.PlaylistEngine
	plays       *tasks.PlaysCollector
	platforms   *services.Registry

	playlists      *repositories.PlaylistRepository
	playlistTracks *repositories.PlaylistTrackRepository
}

func (r *Runner) pipeline() (*pipeline, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}

	users := repositories.NewUserRepository(db)
	friends := repositories.NewFriendRepository(db)
	credentialRepo := repositories.NewCredentialRepository(db)
	sessions := repositories.NewSessionRepository(db)
	tokens := repositories.NewTokenRepository(db)
	platforms := r.registry()

	credentials := tasks.NewCredentialManager(credentialRepo, platforms, r.now, shared.WithLogger(r.logger, "component", "credentials"))
	playlists := repositories.NewPlaylistRepository(db)
	playlistTracks := repositories.NewPlaylistTrackRepository(db)
	aggregator := tasks.NewAggregator(friends, tokens,
		r.config.Playlists.SongsPerPlaylist, r.config.Playlists.CatchupLimit,
		shared.WithLogger(r.logger, "component", "aggregator"))

	engine := tasks.NewPlaylistEngine(tasks.Deps{
		Users:          users,
		Sessions:       sessions,
		Tokens:         tokens,
		Playlists:      playlists,
		PlaylistTracks: playlistTracks,
		Aggregator:     aggregator,
		Credentials:    credentials,
		Platforms:      platforms,
		Notifier:       r.notifier,
	}, tasks.EngineOptions{
		Workers:            r.config.Playlists.Workers,
		FallbackPlaylistID: r.config.Playlists.FallbackPlaylistID,
		Location:           r.config.Session.Location(),
		Now:                r.now,
	}, shared.WithLogger(r.logger, "component", "playlists"))

	return &pipeline{
		users:       users,
		friends:     friends,
		credentials: credentialRepo,
		scheduler: tasks.NewSessionScheduler(sessions, users, tokens, r.config.Session, r.now,
			shared.WithLogger(r.logger, "component", "sessions")),
		engine: engine,
		plays: tasks.NewPlaysCollector(users, repositories.NewTrackPlayRepository(db), credentials, platforms,
			shared.WithLogger(r.logger, "component", "plays")),
		platforms:      platforms,
		playlists:      playlists,
		playlistTracks: playlistTracks,
	}, nil
}

// watch prints progress updates sent on the returned channel. The returned func closes it and
// waits for the printer to drain. Quiet runs get a nil channel.
func (r *Runner) watch(quiet bool) (chan<- tasks.ProgressUpdate, func()) {
	if quiet {
		return nil, func() {}
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.BuildPlaylist, tasks.Notify, tasks.CollectPlays:
				r.writePlain("   %s\n", update.Message)
			default:
				r.writePlain("→ %s\n", update.Message)
			}
		}
	}()

	return progressCh, func() {
		close(progressCh)
		<-done
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

var errNoTokens = errors.New("no tokens received")
