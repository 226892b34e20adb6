package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// callback hits the local redirect endpoint, retrying until the server listens.
func callback(t *testing.T, port int, query url.Values) {
	t.Helper()
	target := fmt.Sprintf("http://localhost:%d/callback?%s", port, query.Encode())
	for i := 0; i < 50; i++ {
		resp, err := http.Get(target)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("callback server never answered on port %d", port)
}

func testOAuthConfig(port int) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    "client",
		RedirectURL: fmt.Sprintf("http://localhost:%d/callback", port),
		Endpoint:    oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: "https://accounts.example.com/token"},
	}
}

func TestAwaitAuthCode(t *testing.T) {
	tests := []struct {
		name    string
		query   func(state string) url.Values
		want    string
		wantErr string
	}{
		{
			name:  "code returned",
			query: func(state string) url.Values { return url.Values{"state": {state}, "code": {"abc"}} },
			want:  "abc",
		},
		{
			name:    "state mismatch",
			query:   func(string) url.Values { return url.Values{"state": {"other"}, "code": {"abc"}} },
			wantErr: "state mismatch",
		},
		{
			name:    "consent denied",
			query:   func(string) url.Values { return url.Values{"error": {"access_denied"}} },
			wantErr: "access_denied",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := freePort(t)
			state, err := randomState()
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			var authURL string
			code, err := awaitAuthCode(ctx, testOAuthConfig(port), port, state, func(u string) {
				authURL = u
				go callback(t, port, tt.query(state))
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, code)
			}
			assert.Contains(t, authURL, "access_type=offline")
			assert.Contains(t, authURL, "state="+state)
		})
	}
}

func TestAwaitAuthCodeTimeout(t *testing.T) {
	port := freePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := awaitAuthCode(ctx, testOAuthConfig(port), port, "s", func(string) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
