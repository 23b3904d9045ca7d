package tokens

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/dylantheriot/bubl-backend/internal/models"
	"github.com/dylantheriot/bubl-backend/internal/shared"
	tu "github.com/dylantheriot/bubl-backend/internal/testing"
)

func TestExchanger(t *testing.T) {
	ctx := context.Background()

	t.Run("AuthURL", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{})
		e := NewExchanger(newTestOptions(srv, tu.NewClock(epoch)), newTestStore())

		u, err := url.Parse(e.AuthURL("user-1"))
		if err != nil {
			t.Fatalf("failed to parse auth url: %v", err)
		}
		q := u.Query()
		expected := map[string]string{
			"client_id":     "client-id",
			"response_type": "code",
			"redirect_uri":  "http://127.0.0.1:5000/callback",
			"state":         "user-1",
			"show_dialog":   "true",
			"scope":         "user-library-read playlist-read-private",
		}
		for k, v := range expected {
			if q.Get(k) != v {
				t.Errorf("expected %s=%q, got %q", k, v, q.Get(k))
			}
		}
		if u.Host != "accounts.example.com" {
			t.Errorf("expected configured authorize host, got %s", u.Host)
		}
	})

	t.Run("Connect stores credentials", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: tu.TokenJSON("A0", "R1", 3600)})
		repo := newTestStore()
		seedUser(t, repo, "user-1", nil)
		bio := "likes records"
		if err := repo.UpdateProfile(ctx, "user-1", models.ProfileUpdate{Bio: &bio}); err != nil {
			t.Fatalf("failed to set bio: %v", err)
		}

		e := NewExchanger(newTestOptions(srv, tu.NewClock(epoch)), repo)
		record, err := e.Connect(ctx, "user-1", "auth-code")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !record.IsConnected || record.AccessToken != "A0" || record.RefreshToken != "R1" {
			t.Errorf("unexpected record: %+v", record)
		}

		user, err := repo.Get(ctx, "user-1")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if !user.IsConnected || user.AccessToken != "A0" || user.RefreshToken != "R1" {
			t.Errorf("unexpected stored credentials: %+v", user.UserTokenRecord)
		}
		if !user.ExpiresAt.Equal(epoch.Add(time.Hour)) {
			t.Errorf("expected expires_at %v, got %v", epoch.Add(time.Hour), user.ExpiresAt)
		}
		if user.Bio != bio {
			t.Errorf("expected bio to survive connect, got %q", user.Bio)
		}

		req := srv.Requests()[0]
		if req.GrantType != GrantAuthorizationCode || req.Code != "auth-code" {
			t.Errorf("unexpected grant: %+v", req)
		}
		if req.RedirectURI != "http://127.0.0.1:5000/callback" {
			t.Errorf("expected redirect uri to match, got %s", req.RedirectURI)
		}
		if !req.BasicAuth || req.ClientID != "client-id" {
			t.Errorf("expected basic auth, got %+v", req)
		}
	})

	t.Run("Connect unknown user", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: tu.TokenJSON("A0", "R1", 3600)})
		e := NewExchanger(newTestOptions(srv, tu.NewClock(epoch)), newTestStore())

		_, err := e.Connect(ctx, "ghost", "auth-code")
		if !errors.Is(err, ErrMissingUserRecord) {
			t.Fatalf("expected ErrMissingUserRecord, got %v", err)
		}
		if srv.Count() != 0 {
			t.Errorf("expected code not to be spent, got %d requests", srv.Count())
		}
	})

	t.Run("Connect failure writes nothing", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Status: http.StatusBadRequest, Body: tu.ErrorJSON("invalid_grant", "Invalid authorization code")})
		repo := newTestStore()
		seedUser(t, repo, "user-1", nil)
		e := NewExchanger(newTestOptions(srv, tu.NewClock(epoch)), repo)

		_, err := e.Connect(ctx, "user-1", "used-code")
		if !errors.Is(err, ErrProviderAuth) {
			t.Fatalf("expected ErrProviderAuth, got %v", err)
		}
		if srv.Count() != 1 {
			t.Errorf("expected no retry, got %d requests", srv.Count())
		}

		record := mustRecord(t, repo, "user-1")
		if record.IsConnected || record.AccessToken != "" || record.RefreshToken != "" {
			t.Errorf("expected untouched record, got %+v", record)
		}
	})

	t.Run("Connect requires refresh token", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: tu.TokenJSON("A0", "", 3600)})
		repo := newTestStore()
		seedUser(t, repo, "user-1", nil)
		e := NewExchanger(newTestOptions(srv, tu.NewClock(epoch)), repo)

		_, err := e.Connect(ctx, "user-1", "auth-code")
		if !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("expected ErrMalformedResponse, got %v", err)
		}
		if mustRecord(t, repo, "user-1").IsConnected {
			t.Error("expected user to remain unconnected")
		}
	})

	t.Run("Exchange requires code", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{})
		e := NewExchanger(newTestOptions(srv, tu.NewClock(epoch)), newTestStore())

		if _, err := e.Exchange(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if srv.Count() != 0 {
			t.Errorf("expected no requests, got %d", srv.Count())
		}
	})
}
