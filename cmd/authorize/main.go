// Command authorize runs the Google consent flow once and writes the token
// cache the server reads at startup.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/room4-2/SalesCaller/calendar"
	"github.com/room4-2/SalesCaller/config"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "address for the local OAuth callback")
	flag.Parse()

	cfg, err := config.LoadGoogleConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	oauthCfg, err := calendar.LoadClientConfig(cfg.CredentialsFile)
	if err != nil {
		log.Fatalf("Failed to load client credentials: %v", err)
	}
	oauthCfg.RedirectURL = "http://" + *addr + "/callback"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	token, err := tokenFromWeb(ctx, oauthCfg, *addr)
	if err != nil {
		log.Fatalf("Authorization failed: %v", err)
	}

	cache := calendar.NewTokenCache(cfg.TokenFile)
	if err := cache.Save(token); err != nil {
		log.Fatalf("Failed to save token: %v", err)
	}
	log.Printf("Token saved to %s", cache.Path())
}

// tokenFromWeb serves the OAuth redirect locally and exchanges the returned code
func tokenFromWeb(ctx context.Context, cfg *oauth2.Config, addr string) (*oauth2.Token, error) {
	state := uuid.New().String()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if msg := r.URL.Query().Get("error"); msg != "" {
			fmt.Fprintf(w, "Authorization was declined: %s", msg)
			errCh <- errors.New(msg)
			return
		}
		fmt.Fprint(w, "Authorization successful! You can close this window.")
		codeCh <- r.URL.Query().Get("code")
	})

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	// Offline access with forced consent so Google always returns a refresh token.
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Visit this URL to authorize the application:\n%v\n", authURL)

	select {
	case code := <-codeCh:
		token, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to exchange authorization code: %w", err)
		}
		if token.RefreshToken == "" {
			return nil, errors.New("no refresh token returned; revoke the app's access and retry")
		}
		return token, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
