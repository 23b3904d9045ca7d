package tokens

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dylantheriot/bubl-backend/internal/shared"
	tu "github.com/dylantheriot/bubl-backend/internal/testing"
)

func TestAppTokenManager(t *testing.T) {
	ctx := context.Background()

	t.Run("issues and caches token", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: tu.TokenJSON("APP1", "", 3600)})
		clock := tu.NewClock(epoch)
		m := NewAppTokenManager(newTestOptions(srv, clock))

		for range 3 {
			tok, err := m.Token(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tok != "APP1" {
				t.Errorf("expected APP1, got %s", tok)
			}
		}

		if srv.Count() != 1 {
			t.Errorf("expected 1 token request, got %d", srv.Count())
		}

		current := m.Current()
		if current == nil || !current.ExpiresAt.Equal(epoch.Add(time.Hour)) {
			t.Errorf("expected expires_at %v, got %+v", epoch.Add(time.Hour), current)
		}
	})

	t.Run("sends client credentials in basic header", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: tu.TokenJSON("APP1", "", 3600)})
		m := NewAppTokenManager(newTestOptions(srv, tu.NewClock(epoch)))

		if _, err := m.Token(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		req := srv.Requests()[0]
		if !req.BasicAuth || req.ClientID != "client-id" || req.ClientSecret != "client-secret" {
			t.Errorf("expected basic auth with client credentials, got %+v", req)
		}
		if req.GrantType != GrantClientCredentials {
			t.Errorf("expected grant_type %s, got %s", GrantClientCredentials, req.GrantType)
		}
		if req.ContentType != "application/x-www-form-urlencoded" {
			t.Errorf("expected form body, got %s", req.ContentType)
		}
	})

	t.Run("re-exchanges after expiry", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: tu.TokenJSON("APP2", "", 3600)})
		srv.Enqueue(tu.TokenResponse{Body: tu.TokenJSON("APP1", "", 3600)})
		clock := tu.NewClock(epoch)
		m := NewAppTokenManager(newTestOptions(srv, clock))

		if tok, _ := m.Token(ctx); tok != "APP1" {
			t.Fatalf("expected APP1, got %s", tok)
		}

		clock.Advance(time.Hour - DefaultSkew/2)
		tok, err := m.Token(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tok != "APP2" {
			t.Errorf("expected APP2 inside the skew window, got %s", tok)
		}
		if srv.Count() != 2 {
			t.Errorf("expected 2 token requests, got %d", srv.Count())
		}
	})

	t.Run("invalidate forces exchange", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: tu.TokenJSON("APP1", "", 3600)})
		m := NewAppTokenManager(newTestOptions(srv, tu.NewClock(epoch)))

		_, _ = m.Token(ctx)
		m.Invalidate()
		if m.Current() != nil {
			t.Error("expected no cached token after invalidate")
		}
		_, _ = m.Token(ctx)

		if srv.Count() != 2 {
			t.Errorf("expected 2 token requests, got %d", srv.Count())
		}
	})

	t.Run("failure is not cached", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: tu.TokenJSON("APP1", "", 3600)})
		srv.Enqueue(tu.TokenResponse{Status: http.StatusBadRequest, Body: tu.ErrorJSON("invalid_client", "Invalid client")})
		m := NewAppTokenManager(newTestOptions(srv, tu.NewClock(epoch)))

		_, err := m.Token(ctx)
		if !errors.Is(err, ErrProviderAuth) {
			t.Fatalf("expected ErrProviderAuth, got %v", err)
		}
		var perr *ProviderError
		if !errors.As(err, &perr) || perr.StatusCode != http.StatusBadRequest || perr.Code != "invalid_client" {
			t.Errorf("expected status 400 invalid_client, got %v", err)
		}
		if srv.Count() != 1 {
			t.Errorf("expected no retry on 400, got %d requests", srv.Count())
		}
		if m.Current() != nil {
			t.Error("expected no cached token after failure")
		}

		tok, err := m.Token(ctx)
		if err != nil {
			t.Fatalf("expected next call to succeed, got %v", err)
		}
		if tok != "APP1" || srv.Count() != 2 {
			t.Errorf("expected fresh exchange, got %s after %d requests", tok, srv.Count())
		}
	})

	t.Run("retries once on server error", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: tu.TokenJSON("APP1", "", 3600)})
		srv.Enqueue(tu.TokenResponse{Status: http.StatusServiceUnavailable, Body: tu.ErrorJSON("server_error", "")})
		m := NewAppTokenManager(newTestOptions(srv, tu.NewClock(epoch)))

		tok, err := m.Token(ctx)
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if tok != "APP1" || srv.Count() != 2 {
			t.Errorf("expected APP1 after 2 requests, got %s after %d", tok, srv.Count())
		}
	})

	t.Run("retry is bounded", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Status: http.StatusBadGateway, Body: tu.ErrorJSON("server_error", "")})
		m := NewAppTokenManager(newTestOptions(srv, tu.NewClock(epoch)))

		if _, err := m.Token(ctx); !errors.Is(err, ErrProviderAuth) {
			t.Fatalf("expected ErrProviderAuth, got %v", err)
		}
		if srv.Count() != 2 {
			t.Errorf("expected exactly 2 requests, got %d", srv.Count())
		}
	})

	t.Run("malformed response", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: `{"token_type":"Bearer","expires_in":3600}`})
		m := NewAppTokenManager(newTestOptions(srv, tu.NewClock(epoch)))

		if _, err := m.Token(ctx); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("expected ErrMalformedResponse, got %v", err)
		}
		if m.Current() != nil {
			t.Error("expected no cached token")
		}
	})

	t.Run("concurrent callers share one exchange", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: tu.TokenJSON("APP1", "", 3600), Delay: 50 * time.Millisecond})
		m := NewAppTokenManager(newTestOptions(srv, tu.NewClock(epoch)))

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := m.Token(ctx); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Errorf("unexpected error: %v", err)
		}
		if srv.Count() != 1 {
			t.Errorf("expected 1 token request, got %d", srv.Count())
		}
	})

	t.Run("caller deadline does not fail joined callers", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: tu.TokenJSON("APP1", "", 3600), Delay: 300 * time.Millisecond})
		m := NewAppTokenManager(newTestOptions(srv, tu.NewClock(epoch)))

		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		shortErr := make(chan error, 1)
		go func() {
			_, err := m.Token(short)
			shortErr <- err
		}()

		deadline := time.Now().Add(time.Second)
		for srv.Count() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		tok, err := m.Token(ctx)
		if err != nil {
			t.Fatalf("expected joined caller to succeed, got %v", err)
		}
		if tok != "APP1" {
			t.Errorf("expected APP1, got %s", tok)
		}
		if err := <-shortErr; !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected short caller to time out, got %v", err)
		}
		if srv.Count() != 1 {
			t.Errorf("expected 1 token request, got %d", srv.Count())
		}
		if m.Current() == nil {
			t.Error("expected exchange result to be cached")
		}
	})

	t.Run("short-lived token is served from cache", func(t *testing.T) {
		srv := tu.NewTokenServer(t, tu.TokenResponse{Body: tu.TokenJSON("APP1", "", 20)})
		clock := tu.NewClock(epoch)
		m := NewAppTokenManager(newTestOptions(srv, clock))

		for range 3 {
			if _, err := m.Token(ctx); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}
		if srv.Count() != 1 {
			t.Errorf("expected 1 token request for a 20s token, got %d", srv.Count())
		}

		clock.Advance(16 * time.Second)
		if _, err := m.Token(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if srv.Count() != 2 {
			t.Errorf("expected re-exchange inside the clamped skew, got %d requests", srv.Count())
		}
	})
}
