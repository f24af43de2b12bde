package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/perfectritone/spotify-to-tidal-web/internal/models"
	"github.com/perfectritone/spotify-to-tidal-web/internal/repositories"
	"github.com/perfectritone/spotify-to-tidal-web/internal/services"
	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
	"github.com/urfave/cli/v3"
)

// cliSessionID is the fixed session row the terminal commands share for
// credential persistence. Browser sessions get random identifiers; the CLI
// always reads and writes this one.
const cliSessionID = "cli"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
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

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, reportCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// loadConfig reads the config file named by the command's --config flag into
// the runner, keeping the current config when the file is absent.
func (r *Runner) loadConfig(cmd *cli.Command) {
	configPath := cmd.String("config")
	if configPath == "" {
		return
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", configPath)
		return
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		return
	}
	r.config = config
}

// openSessions opens the configured database and returns a session
// repository. The caller must call the returned closer.
func (r *Runner) openSessions() (*repositories.SessionRepository, func(), error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repositories.NewSessionRepository(db), func() { db.Close() }, nil
}

// cliSession loads the CLI's fixed session row, creating it on first use.
func (r *Runner) cliSession(sessions *repositories.SessionRepository) (*models.Session, error) {
	session, err := sessions.Get(cliSessionID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	session = models.NewSession()
	session.SetID(cliSessionID)
	if err := sessions.Create(session); err != nil {
		return nil, fmt.Errorf("failed to create CLI session: %w", err)
	}
	return session, nil
}

// spotifyClient builds a Spotify client from the configured credentials,
// installing the session's tokens when present.
func (r *Runner) spotifyClient(session *models.Session) (*services.SpotifyService, error) {
	spotify, err := services.NewSpotifyService(map[string]string{
		"client_id":     r.config.Credentials.Spotify.ClientID,
		"client_secret": r.config.Credentials.Spotify.ClientSecret,
		"redirect_uri":  r.config.Credentials.Spotify.RedirectURI,
	})
	if err != nil {
		return nil, err
	}

	if session != nil && session.SpotifyAuthenticated() {
		if err := spotify.Authenticate(context.Background(), map[string]string{
			"access_token":  session.SpotifyAccessToken(),
			"refresh_token": session.SpotifyRefreshToken(),
		}); err != nil {
			return nil, err
		}
	}

	return spotify, nil
}

// tidalClient builds a Tidal client from the configured credentials, loading
// the session's tokens when present.
func (r *Runner) tidalClient(session *models.Session) (*services.TidalService, error) {
	tidal, err := services.NewTidalService(map[string]string{
		"client_id":     r.config.Credentials.Tidal.ClientID,
		"client_secret": r.config.Credentials.Tidal.ClientSecret,
	})
	if err != nil {
		return nil, err
	}

	if session != nil && session.TidalAuthenticated() {
		if err := tidal.LoadSession(&services.TidalTokens{
			TokenType:    session.TidalTokenType(),
			AccessToken:  session.TidalAccessToken(),
			RefreshToken: session.TidalRefreshToken(),
			UserID:       session.TidalUserID(),
			ExpiresAt:    session.TidalExpiresAt(),
		}); err != nil {
			return nil, err
		}
	}

	return tidal, nil
}

// persistSpotifyTokens writes a refreshed Spotify token back to the session
// row so the next command starts from the new credential.
func (r *Runner) persistSpotifyTokens(sessions *repositories.SessionRepository, session *models.Session, spotify *services.SpotifyService) {
	token := spotify.Token()
	if token == nil || token.AccessToken == session.SpotifyAccessToken() {
		return
	}

	session.SetSpotifyTokens(token.AccessToken, token.RefreshToken)
	if err := sessions.Update(session); err != nil {
		r.logger.Warn("failed to persist refreshed tokens", "error", err)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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
