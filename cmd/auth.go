package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/perfectritone/spotify-to-tidal-web/internal/server"
	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// spotifyAuthTimeout bounds how long the callback listener waits for the
// browser redirect.
const spotifyAuthTimeout = 5 * time.Minute

// AuthSpotify runs the browser authorization-code flow: starts a temporary
// callback server on the configured redirect URI, prints the consent URL, and
// persists the exchanged tokens to the CLI session.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	sessions, closeDB, err := r.openSessions()
	if err != nil {
		return err
	}
	defer closeDB()

	session, err := r.cliSession(sessions)
	if err != nil {
		return err
	}

	spotify, err := r.spotifyClient(nil)
	if err != nil {
		return err
	}

	redirect, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return fmt.Errorf("%w: invalid redirect URI: %v", shared.ErrInvalidConfig, err)
	}
	host, portStr, err := net.SplitHostPort(redirect.Host)
	if err != nil {
		return fmt.Errorf("%w: redirect URI needs an explicit port: %v", shared.ErrInvalidConfig, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("%w: invalid redirect URI port: %v", shared.ErrInvalidConfig, err)
	}

	state := shared.GenerateID()
	handler := server.NewOAuthHandler(func(code string) (*oauth2.Token, error) {
		return spotify.Exchange(ctx, code)
	}, state, redirect.Path)

	router := server.NewBasicRouter()
	router.Handler(handler)

	callbackServer := server.NewServer(shared.ServerConfig{Host: host, Port: port}, router, r.logger)
	go func() {
		if err := callbackServer.Start(); err != nil {
			r.logger.Error("callback server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		callbackServer.Shutdown(shutdownCtx)
	}()

	r.writePlain("Open this URL in your browser to connect Spotify:\n\n")
	r.writePlain("  %s\n\n", spotify.GetAuthURL(state))
	r.writePlain("Waiting for authorization...\n")

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case <-time.After(spotifyAuthTimeout):
		return fmt.Errorf("authorization timed out after %v", spotifyAuthTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Error() != nil {
		return result.Error()
	}

	session.SetSpotifyTokens(result.Token.AccessToken, result.Token.RefreshToken)

	if err := spotify.Authenticate(ctx, map[string]string{
		"access_token":  result.Token.AccessToken,
		"refresh_token": result.Token.RefreshToken,
	}); err == nil {
		if user, err := spotify.UserProfile(ctx); err == nil {
			session.SetSpotifyUser(user.DisplayName)
		} else {
			r.logger.Warn("failed to fetch profile", "error", err)
		}
	}

	if err := sessions.Update(session); err != nil {
		return fmt.Errorf("failed to persist tokens: %w", err)
	}

	if session.SpotifyUser() != "" {
		return r.writePlain("✓ Spotify connected as %s\n", session.SpotifyUser())
	}
	return r.writePlain("✓ Spotify connected\n")
}

// AuthTidal runs the device link flow: prints the link code, polls until the
// user approves in a browser, and persists the tokens to the CLI session.
func (r *Runner) AuthTidal(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	sessions, closeDB, err := r.openSessions()
	if err != nil {
		return err
	}
	defer closeDB()

	session, err := r.cliSession(sessions)
	if err != nil {
		return err
	}

	tidal, err := r.tidalClient(nil)
	if err != nil {
		return err
	}

	auth, err := tidal.StartDeviceAuth(ctx)
	if err != nil {
		return err
	}

	r.writePlain("Open this URL in your browser to connect Tidal:\n\n")
	r.writePlain("  %s\n\n", auth.VerificationURIComplete)
	r.writePlain("Link code: %s\n", auth.UserCode)

	if cmd.Bool("no-wait") {
		return r.writePlain("Run 'sp2t auth tidal' again to complete the link.\n")
	}

	interval := time.Duration(auth.Interval) * time.Second
	if interval < 2*time.Second {
		interval = 2 * time.Second
	}
	deadline := time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second)

	r.writePlain("Waiting for approval...\n")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("device link expired before approval")
		}

		tokens, err := tidal.CheckDeviceAuth(ctx, auth.DeviceCode)
		if errors.Is(err, shared.ErrAuthPending) {
			continue
		}
		if err != nil {
			return err
		}

		session.SetTidalTokens(tokens.TokenType, tokens.AccessToken, tokens.RefreshToken, tokens.UserID, tokens.ExpiresAt)
		if err := sessions.Update(session); err != nil {
			return fmt.Errorf("failed to persist tokens: %w", err)
		}

		return r.writePlain("✓ Tidal connected (user %s)\n", tokens.UserID)
	}
}

// AuthStatus reports which services the CLI session has credentials for.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	sessions, closeDB, err := r.openSessions()
	if err != nil {
		return err
	}
	defer closeDB()

	session, err := r.cliSession(sessions)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"spotify": map[string]any{
				"connected": session.SpotifyAuthenticated(),
				"user":      session.SpotifyUser(),
			},
			"tidal": map[string]any{
				"connected": session.TidalAuthenticated(),
				"user_id":   session.TidalUserID(),
			},
		}, true)
	}

	if session.SpotifyAuthenticated() {
		if session.SpotifyUser() != "" {
			r.writePlain("Spotify: ✓ connected (%s)\n", session.SpotifyUser())
		} else {
			r.writePlain("Spotify: ✓ connected\n")
		}
	} else {
		r.writePlain("Spotify: ✗ not connected\n")
	}

	if session.TidalAuthenticated() {
		r.writePlain("Tidal:   ✓ connected (user %s)\n", session.TidalUserID())
	} else {
		r.writePlain("Tidal:   ✗ not connected\n")
	}

	return nil
}

// AuthLogout clears the stored credentials for both services.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	sessions, closeDB, err := r.openSessions()
	if err != nil {
		return err
	}
	defer closeDB()

	session, err := r.cliSession(sessions)
	if err != nil {
		return err
	}

	session.ClearSpotify()
	session.ClearTidal()
	if err := sessions.Update(session); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	return r.writePlain("✓ Credentials cleared\n")
}
