package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	gsheet "expensetracker/internal/sheets/google"
)

func newSheetsAuthCmd(a *app) *cobra.Command {
	var (
		clientFile string
		tokenFile  string
		port       int
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize the Google Sheets mirror with a user account",
		Long: `Run the OAuth consent flow for the client secret in --client and store the
resulting refresh token in --token. The redirect URI
http://localhost:<port>/callback must be registered on the OAuth client.
Point GOOGLE_OAUTH_CLIENT_FILE and GOOGLE_OAUTH_TOKEN_FILE at the same files
for the sync worker.`,
		Example: `  expensectl sheets-auth --client client_secret.json --token token.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientFile == "" {
				return fmt.Errorf("--client is required")
			}
			clientJSON, err := os.ReadFile(clientFile)
			if err != nil {
				return fmt.Errorf("read client file: %w", err)
			}
			redirect := fmt.Sprintf("http://localhost:%d/callback", port)
			cfg, err := gsheet.OAuthConfig(clientJSON, redirect)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			state, err := randomState()
			if err != nil {
				return err
			}
			code, err := awaitAuthCode(ctx, cfg, port, state, func(url string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize:\n%s\n", url)
			})
			if err != nil {
				return err
			}

			tok, err := cfg.Exchange(ctx, code)
			if err != nil {
				return fmt.Errorf("token exchange: %w", err)
			}
			if err := gsheet.WriteToken(tokenFile, tok); err != nil {
				return err
			}
			a.logger.Info("Saved OAuth token", "path", tokenFile)
			fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", tokenFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientFile, "client", a.cfg.GoogleOAuthClientFile, "OAuth client secret JSON")
	cmd.Flags().StringVar(&tokenFile, "token", defaultString(a.cfg.GoogleOAuthTokenFile, "token.json"), "Where to write the token")
	cmd.Flags().IntVar(&port, "port", 8085, "Local port for the OAuth redirect")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for consent")
	return cmd
}

// awaitAuthCode serves the redirect endpoint until Google calls back with a
// code for state or ctx ends.
func awaitAuthCode(ctx context.Context, cfg *oauth2.Config, port int, state string, prompt func(url string)) (string, error) {
	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res result
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
		case q.Get("state") != state:
			res.err = errors.New("authorization state mismatch")
			http.Error(w, "State mismatch", http.StatusBadRequest)
		case q.Get("code") == "":
			res.err = errors.New("authorization code missing")
			http.Error(w, "Missing code", http.StatusBadRequest)
		default:
			res.code = q.Get("code")
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Addr: fmt.Sprintf("localhost:%d", port), Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	prompt(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	select {
	case res := <-results:
		return res.code, res.err
	case err := <-serveErr:
		return "", fmt.Errorf("callback server: %w", err)
	case <-ctx.Done():
		return "", fmt.Errorf("authorization not completed: %w", ctx.Err())
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
