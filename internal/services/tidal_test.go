package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/perfectritone/spotify-to-tidal-web/internal/shared"
	tu "github.com/perfectritone/spotify-to-tidal-web/internal/testing"
)

func testTidalService(t *testing.T) *TidalService {
	t.Helper()
	srv, err := NewTidalService(map[string]string{"client_id": "test_client_id"})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	srv.tokens = &TidalTokens{AccessToken: "test_access_token", UserID: "42"}
	return srv
}

func tidalStub(t *testing.T, srv *TidalService, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	srv.baseURL = server.URL
	srv.authBaseURL = server.URL
	return server
}

func TestTidalService(t *testing.T) {
	ctx := context.Background()

	t.Run("NewTidalService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewTidalService(map[string]string{"client_id": "test_client_id"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Tidal" {
				t.Errorf("expected service name 'Tidal', got %s", srv.Name())
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewTidalService(map[string]string{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("StartDeviceAuth", func(t *testing.T) {
		srv := testTidalService(t)
		tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/device_authorization" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse form: %v", err)
			}
			if r.PostForm.Get("client_id") != "test_client_id" {
				t.Errorf("expected client_id in form, got %q", r.PostForm.Get("client_id"))
			}
			fmt.Fprint(w, `{
				"deviceCode": "dev123",
				"userCode": "ABCDE",
				"verificationUriComplete": "link.tidal.com/ABCDE",
				"expiresIn": 300,
				"interval": 2
			}`)
		})

		auth, err := srv.StartDeviceAuth(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if auth.DeviceCode != "dev123" || auth.UserCode != "ABCDE" {
			t.Errorf("unexpected device auth: %+v", auth)
		}
		if auth.VerificationURIComplete != "https://link.tidal.com/ABCDE" {
			t.Errorf("expected https prefix on verification URI, got %s", auth.VerificationURIComplete)
		}
	})

	t.Run("CheckDeviceAuth", func(t *testing.T) {
		t.Run("Pending", func(t *testing.T) {
			srv := testTidalService(t)
			tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error": "authorization_pending"}`)
			})

			_, err := srv.CheckDeviceAuth(ctx, "dev123")
			if !errors.Is(err, shared.ErrAuthPending) {
				t.Errorf("expected ErrAuthPending, got %v", err)
			}
		})

		t.Run("Authorized", func(t *testing.T) {
			srv := testTidalService(t)
			tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Fatalf("failed to parse form: %v", err)
				}
				if r.PostForm.Get("device_code") != "dev123" {
					t.Errorf("expected device_code in form, got %q", r.PostForm.Get("device_code"))
				}
				fmt.Fprint(w, `{
					"token_type": "Bearer",
					"access_token": "at123",
					"refresh_token": "rt123",
					"expires_in": 3600,
					"user": {"userId": 99}
				}`)
			})

			tokens, err := srv.CheckDeviceAuth(ctx, "dev123")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tokens.AccessToken != "at123" || tokens.RefreshToken != "rt123" {
				t.Errorf("unexpected tokens: %+v", tokens)
			}
			if tokens.UserID != "99" {
				t.Errorf("expected user ID '99', got %q", tokens.UserID)
			}
			if tokens.ExpiresAt.Before(time.Now()) {
				t.Error("expected a future expiry")
			}
			if srv.Tokens() != tokens {
				t.Error("expected tokens installed on the client")
			}
		})

		t.Run("Empty Access Token", func(t *testing.T) {
			srv := testTidalService(t)
			tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"token_type": "Bearer"}`)
			})

			_, err := srv.CheckDeviceAuth(ctx, "dev123")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})

	t.Run("LoadSession", func(t *testing.T) {
		t.Run("Valid Tokens", func(t *testing.T) {
			srv := testTidalService(t)
			tokens := &TidalTokens{AccessToken: "at", UserID: "7"}
			if err := srv.LoadSession(tokens); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Tokens() != tokens {
				t.Error("expected tokens installed")
			}
		})

		t.Run("Empty Session", func(t *testing.T) {
			srv := testTidalService(t)
			if err := srv.LoadSession(nil); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials for nil tokens, got %v", err)
			}
			if err := srv.LoadSession(&TidalTokens{}); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials for empty access token, got %v", err)
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
				srv := testTidalService(t)
				srv.httpClient = &http.Client{
					Transport: tu.NewMockRoundTripper(tu.JSONResponse(tc.status, `{}`), nil),
				}

				_, err := srv.SearchTracks(ctx, "query", 5)
				if !errors.Is(err, tc.want) {
					t.Errorf("expected %v, got %v", tc.want, err)
				}
			})
		}

		t.Run("Not Authenticated", func(t *testing.T) {
			srv := testTidalService(t)
			srv.tokens = nil

			_, err := srv.SearchTracks(ctx, "query", 5)
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})
	})

	t.Run("SearchTracks", func(t *testing.T) {
		srv := testTidalService(t)
		tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/search/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("query"); got != "artist x song a" {
				t.Errorf("unexpected query %q", got)
			}
			fmt.Fprint(w, `{
				"items": [
					{"id": 101, "title": "Song A", "artists": [{"id": 5, "name": "Artist X"}], "album": {"title": "Album Z"}, "isrc": "USX123"}
				],
				"totalNumberOfItems": 1
			}`)
		})

		tracks, err := srv.SearchTracks(ctx, "artist x song a", 5)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 {
			t.Fatalf("expected 1 track, got %d", len(tracks))
		}
		if tracks[0].ID != "101" {
			t.Errorf("expected numeric ID formatted as string, got %q", tracks[0].ID)
		}
		if tracks[0].Name != "Song A" || tracks[0].Album != "Album Z" || tracks[0].ISRC != "USX123" {
			t.Errorf("unexpected track projection: %+v", tracks[0])
		}
	})

	t.Run("SearchAlbums", func(t *testing.T) {
		srv := testTidalService(t)
		tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"items": [
					{"id": 202, "title": "Album Z", "artists": [{"id": 5, "name": "Artist X"}], "releaseDate": "2001-05-01", "numberOfTracks": 10}
				],
				"totalNumberOfItems": 1
			}`)
		})

		albums, err := srv.SearchAlbums(ctx, "album z", 5)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(albums) != 1 || albums[0].ID != "202" || albums[0].TrackCount != 10 {
			t.Errorf("unexpected album projection: %+v", albums)
		}
	})

	t.Run("FavoriteTrackIDs", func(t *testing.T) {
		srv := testTidalService(t)
		tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/users/42/favorites/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			fmt.Fprint(w, `{
				"items": [
					{"created": "2024-01-01", "item": {"id": 101, "title": "Song A"}},
					{"created": "2024-01-02", "item": {"id": 102, "title": "Song B"}}
				],
				"totalNumberOfItems": 2
			}`)
		})

		ids, err := srv.FavoriteTrackIDs(ctx, 100, 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(ids) != 2 || ids[0] != "101" || ids[1] != "102" {
			t.Errorf("expected IDs extracted from favorite wrappers, got %v", ids)
		}
	})

	t.Run("AddFavoriteTrack", func(t *testing.T) {
		srv := testTidalService(t)
		var gotForm string
		tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse form: %v", err)
			}
			gotForm = r.PostForm.Get("trackIds")
			w.WriteHeader(http.StatusCreated)
		})

		if err := srv.AddFavoriteTrack(ctx, "101"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gotForm != "101" {
			t.Errorf("expected trackIds=101, got %q", gotForm)
		}
	})

	t.Run("Playlists Pagination", func(t *testing.T) {
		srv := testTidalService(t)
		var offsets []string
		tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
			offset := r.URL.Query().Get("offset")
			offsets = append(offsets, offset)
			if offset == "0" {
				// full page forces a second fetch
				var items []string
				for i := 0; i < 50; i++ {
					items = append(items, fmt.Sprintf(`{"uuid": "pl%d", "title": "Playlist %d"}`, i, i))
				}
				fmt.Fprintf(w, `{"items": [%s], "totalNumberOfItems": 51}`, strings.Join(items, ","))
				return
			}
			fmt.Fprint(w, `{"items": [{"uuid": "pl50", "title": "Playlist 50"}], "totalNumberOfItems": 51}`)
		})

		playlists, err := srv.Playlists(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 51 {
			t.Errorf("expected 51 playlists across pages, got %d", len(playlists))
		}
		if len(offsets) != 2 || offsets[1] != "50" {
			t.Errorf("expected offsets [0 50], got %v", offsets)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		srv := testTidalService(t)
		tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/users/42/playlists" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse form: %v", err)
			}
			if r.PostForm.Get("title") != "Road Trip" {
				t.Errorf("expected title in form, got %q", r.PostForm.Get("title"))
			}
			fmt.Fprint(w, `{"uuid": "new-uuid", "title": "Road Trip"}`)
		})

		created, err := srv.CreatePlaylist(ctx, "Road Trip", "songs")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if created.ID != "new-uuid" || created.Name != "Road Trip" {
			t.Errorf("unexpected playlist: %+v", created)
		}
	})

	t.Run("AddPlaylistTracks", func(t *testing.T) {
		t.Run("Joins IDs And Skips Dupes", func(t *testing.T) {
			srv := testTidalService(t)
			var trackIDs, onDupes string
			tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Fatalf("failed to parse form: %v", err)
				}
				trackIDs = r.PostForm.Get("trackIds")
				onDupes = r.PostForm.Get("onDupes")
			})

			if err := srv.AddPlaylistTracks(ctx, "pl1", []string{"101", "102"}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if trackIDs != "101,102" {
				t.Errorf("expected comma-joined IDs, got %q", trackIDs)
			}
			if onDupes != "SKIP" {
				t.Errorf("expected onDupes=SKIP, got %q", onDupes)
			}
		})

		t.Run("Empty List Is A No-Op", func(t *testing.T) {
			srv := testTidalService(t)
			tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected for an empty track list")
			})

			if err := srv.AddPlaylistTracks(ctx, "pl1", nil); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	})

	t.Run("PlaylistTrackIDs", func(t *testing.T) {
		srv := testTidalService(t)
		tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/pl1/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			fmt.Fprint(w, `{"items": [{"id": 101}, {"id": 102}], "totalNumberOfItems": 2}`)
		})

		ids, err := srv.PlaylistTrackIDs(ctx, "pl1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(ids) != 2 || ids[0] != "101" {
			t.Errorf("unexpected IDs: %v", ids)
		}
	})

	t.Run("CheckLogin", func(t *testing.T) {
		srv := testTidalService(t)
		srv.tokens.UserID = ""
		tidalStub(t, srv, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"userId": 42, "countryCode": "DE"}`)
		})

		if err := srv.CheckLogin(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if srv.countryCode != "DE" {
			t.Errorf("expected country code captured, got %q", srv.countryCode)
		}
		if srv.tokens.UserID != "42" {
			t.Errorf("expected user ID backfilled, got %q", srv.tokens.UserID)
		}
	})
}
