package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
	tu "github.com/perfectritone/spotify-to-tidal-web/internal/testing"
	"golang.org/x/oauth2"
)

func testSpotifyService(t *testing.T) *SpotifyService {
	t.Helper()
	srv, err := NewSpotifyService(map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	srv.token = &oauth2.Token{AccessToken: "test_access_token"}
	return srv
}

// spotifyStub points the service at an httptest server serving fixed JSON
// bodies by path.
func spotifyStub(t *testing.T, srv *SpotifyService, routes map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test_access_token" {
			t.Errorf("expected bearer auth header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	srv.baseURL = server.URL
	return server
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()

	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "x"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "x"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("GetAuthURL", func(t *testing.T) {
		srv := testSpotifyService(t)
		authURL := srv.GetAuthURL("test_state")

		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("With Access Token", func(t *testing.T) {
			srv := testSpotifyService(t)
			err := srv.Authenticate(ctx, map[string]string{
				"access_token":  "new_token",
				"refresh_token": "new_refresh",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Token().AccessToken != "new_token" {
				t.Errorf("expected installed access token, got %s", srv.Token().AccessToken)
			}
			if srv.Token().RefreshToken != "new_refresh" {
				t.Errorf("expected installed refresh token, got %s", srv.Token().RefreshToken)
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			srv := testSpotifyService(t)
			err := srv.Authenticate(ctx, map[string]string{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("Status Mapping", func(t *testing.T) {
		statuses := []struct {
			name   string
			status int
			want   error
		}{
			{"Unauthorized", http.StatusUnauthorized, shared.ErrUnauthorized},
			{"Rate Limited", http.StatusTooManyRequests, shared.ErrRateLimited},
			{"Service Unavailable", http.StatusServiceUnavailable, shared.ErrServiceUnavailable},
			{"Server Error", http.StatusInternalServerError, shared.ErrAPIRequest},
		}

		for _, tc := range statuses {
			t.Run(tc.name, func(t *testing.T) {
				srv := testSpotifyService(t)
				srv.httpClient = &http.Client{
					Transport: tu.NewMockRoundTripper(tu.JSONResponse(tc.status, `{}`), nil),
				}

				_, _, err := srv.SavedTracks(ctx, 20, 0)
				if !errors.Is(err, tc.want) {
					t.Errorf("expected %v, got %v", tc.want, err)
				}
			})
		}

		t.Run("Not Authenticated", func(t *testing.T) {
			srv := testSpotifyService(t)
			srv.token = nil

			_, _, err := srv.SavedTracks(ctx, 20, 0)
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("Connection Failure", func(t *testing.T) {
			srv := testSpotifyService(t)
			srv.httpClient = &http.Client{
				Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed")),
			}

			_, _, err := srv.SavedTracks(ctx, 20, 0)
			if err == nil {
				t.Error("expected error on connection failure")
			}
		})
	})

	t.Run("UserProfile", func(t *testing.T) {
		srv := testSpotifyService(t)
		spotifyStub(t, srv, map[string]string{
			"/me": `{"id": "user1", "display_name": "Test User", "country": "US"}`,
		})

		user, err := srv.UserProfile(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.ID != "user1" || user.DisplayName != "Test User" {
			t.Errorf("unexpected profile: %+v", user)
		}
	})

	t.Run("Playlists", func(t *testing.T) {
		srv := testSpotifyService(t)
		spotifyStub(t, srv, map[string]string{
			"/me/playlists": `{
				"items": [
					{"id": "pl1", "name": "Road Trip", "description": "songs", "public": true, "tracks": {"total": 12}},
					{"id": "pl2", "name": "Focus", "tracks": {"total": 40}}
				],
				"total": 2
			}`,
		})

		playlists, total, err := srv.Playlists(ctx, 20, 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if total != 2 || len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d (total %d)", len(playlists), total)
		}
		if playlists[0].Name != "Road Trip" || playlists[0].TrackCount != 12 || !playlists[0].Public {
			t.Errorf("unexpected playlist projection: %+v", playlists[0])
		}
	})

	t.Run("PlaylistTracks", func(t *testing.T) {
		t.Run("Projects Track Fields", func(t *testing.T) {
			srv := testSpotifyService(t)
			spotifyStub(t, srv, map[string]string{
				"/playlists/pl1/tracks": `{
					"items": [
						{"track": {"id": "t1", "name": "Song A", "artists": [{"name": "Artist X"}, {"name": "Artist Y"}], "album": {"name": "Album Z"}, "external_ids": {"isrc": "USX123"}}}
					],
					"total": 1
				}`,
			})

			tracks, total, err := srv.PlaylistTracks(ctx, "pl1", 20, 0)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if total != 1 || len(tracks) != 1 {
				t.Fatalf("expected 1 track, got %d", len(tracks))
			}

			track := tracks[0]
			if track.ID != "t1" || track.Name != "Song A" || track.Album != "Album Z" {
				t.Errorf("unexpected track projection: %+v", track)
			}
			if len(track.Artists) != 2 || track.Artists[0] != "Artist X" {
				t.Errorf("unexpected artists: %v", track.Artists)
			}
			if track.ISRC != "USX123" {
				t.Errorf("expected ISRC from external_ids, got %q", track.ISRC)
			}
		})

		t.Run("Skips Local Tracks", func(t *testing.T) {
			srv := testSpotifyService(t)
			spotifyStub(t, srv, map[string]string{
				"/playlists/pl1/tracks": `{
					"items": [
						{"track": {"id": "", "name": "Local File"}},
						{"track": {"id": "t2", "name": "Song B", "artists": [{"name": "Artist X"}]}}
					],
					"total": 2
				}`,
			})

			tracks, total, err := srv.PlaylistTracks(ctx, "pl1", 20, 0)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if total != 2 {
				t.Errorf("total should report the full playlist size, got %d", total)
			}
			if len(tracks) != 1 || tracks[0].ID != "t2" {
				t.Errorf("expected local track dropped, got %+v", tracks)
			}
		})
	})

	t.Run("SavedAlbums", func(t *testing.T) {
		srv := testSpotifyService(t)
		spotifyStub(t, srv, map[string]string{
			"/me/albums": `{
				"items": [
					{"album": {"id": "a1", "name": "Album Z", "artists": [{"name": "Artist X"}], "release_date": "2001-05-01", "total_tracks": 10}}
				],
				"total": 1
			}`,
		})

		albums, total, err := srv.SavedAlbums(ctx, 20, 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if total != 1 || len(albums) != 1 {
			t.Fatalf("expected 1 album, got %d", len(albums))
		}
		if albums[0].ReleaseDate != "2001-05-01" || albums[0].TrackCount != 10 {
			t.Errorf("unexpected album projection: %+v", albums[0])
		}
	})

	t.Run("FollowedArtists", func(t *testing.T) {
		srv := testSpotifyService(t)
		spotifyStub(t, srv, map[string]string{
			"/me/following": `{
				"artists": {
					"items": [{"id": "ar1", "name": "Artist X"}, {"id": "ar2", "name": "Artist Y"}],
					"total": 5,
					"cursors": {"after": "ar2"}
				}
			}`,
		})

		artists, after, total, err := srv.FollowedArtists(ctx, 20, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(artists) != 2 || artists[1].Name != "Artist Y" {
			t.Errorf("unexpected artists: %+v", artists)
		}
		if after != "ar2" {
			t.Errorf("expected cursor 'ar2', got %q", after)
		}
		if total != 5 {
			t.Errorf("expected total 5, got %d", total)
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("No Refresh Token", func(t *testing.T) {
			srv := testSpotifyService(t)
			if err := srv.Refresh(ctx); !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected ErrNoRefreshToken, got %v", err)
			}
		})

		t.Run("No Token At All", func(t *testing.T) {
			srv := testSpotifyService(t)
			srv.token = nil
			if err := srv.Refresh(ctx); !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected ErrNoRefreshToken, got %v", err)
			}
		})
	})
}

func TestClampPageLimit(t *testing.T) {
	cases := []struct {
		name  string
		limit int
		want  int
	}{
		{"Zero Defaults", 0, 20},
		{"Negative Defaults", -1, 20},
		{"In Range", 35, 35},
		{"Capped At Fifty", 200, 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := clampPageLimit(tc.limit); got != tc.want {
				t.Errorf("clampPageLimit(%d) = %d, want %d", tc.limit, got, tc.want)
			}
		})
	}
}
