package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// DefaultRedirectPort is the localhost port used for the OAuth callback
const DefaultRedirectPort = 8085

// ErrNoCredential is returned when neither an access token nor a token file is available
var ErrNoCredential = errors.New("no drive credential available")

// OAuthConfig holds the configuration for OAuth 2.0 authentication
type OAuthConfig struct {
	CredentialsFile string // Path to OAuth client credentials JSON
	TokenFile       string // Path to store/load token
	RedirectPort    int    // Localhost callback port; 0 means DefaultRedirectPort
	OpenBrowser     bool   // Try to open the consent page automatically
	ExtraScopes     []string
}

// Authorize returns a valid token for the configured account. A stored token
// is refreshed when possible; otherwise the browser consent flow runs. The
// resulting token is written to the token file.
func Authorize(ctx context.Context, cfg OAuthConfig, out io.Writer) (*oauth2.Token, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read OAuth credentials file: %w", err)
	}

	// Parse the OAuth client credentials
	scopes := append([]string{drive.DriveScope}, cfg.ExtraScopes...)
	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse OAuth credentials: %w", err)
	}

	token, err := getToken(ctx, config, cfg, out)
	if err != nil {
		return nil, fmt.Errorf("unable to get OAuth token: %w", err)
	}
	return token, nil
}

// StaticTokenSource builds the credential the gateway uses for a session.
// An explicit access token wins over the token file. The source never
// refreshes: an expired token surfaces as an authentication error.
func StaticTokenSource(accessToken, tokenFile string) (oauth2.TokenSource, error) {
	if accessToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}), nil
	}
	if tokenFile == "" {
		return nil, ErrNoCredential
	}
	token, err := LoadToken(tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("unable to read token file: %w", err)
	}
	if token.AccessToken == "" {
		return nil, ErrNoCredential
	}
	// Drop the refresh token and expiry so the static source hands out the
	// access token as is.
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.AccessToken, TokenType: token.TokenType}), nil
}

// getToken retrieves a token from file or initiates the OAuth flow
func getToken(ctx context.Context, config *oauth2.Config, cfg OAuthConfig, out io.Writer) (*oauth2.Token, error) {
	// Try to load existing token
	token, err := LoadToken(cfg.TokenFile)
	if err == nil {
		// Check if token is still valid or can be refreshed
		tokenSource := config.TokenSource(ctx, token)
		newToken, err := tokenSource.Token()
		if err == nil {
			// Save refreshed token if it changed
			if newToken.AccessToken != token.AccessToken {
				if err := SaveToken(cfg.TokenFile, newToken); err != nil {
					fmt.Fprintf(out, "Warning: couldn't save token: %v\n", err)
				}
			}
			return newToken, nil
		}
		// Token refresh failed, need to re-authenticate
	}

	// No valid token, initiate OAuth flow
	return getTokenFromWeb(ctx, config, cfg, out)
}

// LoadToken loads a token from a file
func LoadToken(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}

// SaveToken saves a token to a file readable only by the owner
func SaveToken(file string, token *oauth2.Token) error {
	if dir := filepath.Dir(file); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}

// getTokenFromWeb initiates the OAuth flow via browser
func getTokenFromWeb(ctx context.Context, config *oauth2.Config, cfg OAuthConfig, out io.Writer) (*oauth2.Token, error) {
	port := cfg.RedirectPort
	if port == 0 {
		port = DefaultRedirectPort
	}
	// Use localhost redirect for installed apps
	config.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", port)

	// Channel to receive the auth code
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			select {
			case errChan <- fmt.Errorf("no code in callback"):
			default:
			}
			fmt.Fprintf(w, "Error: No authorization code received")
			return
		}
		select {
		case codeChan <- code:
		default:
		}
		fmt.Fprintf(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window and return to the terminal.</p></body></html>")
	})

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return nil, fmt.Errorf("unable to start callback listener: %w", err)
	}
	server := &http.Server{Handler: mux}

	// Start server in background
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Opening browser for Google authentication...")
	fmt.Fprintln(out, "If the browser doesn't open, please visit this URL:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out)

	if cfg.OpenBrowser {
		openBrowser(authURL)
	}

	// Wait for callback
	var authCode string
	select {
	case authCode = <-codeChan:
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Exchange code for token
	token, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange auth code: %w", err)
	}

	// Save token for future use
	if err := SaveToken(cfg.TokenFile, token); err != nil {
		fmt.Fprintf(out, "Warning: couldn't save token: %v\n", err)
	}

	fmt.Fprintln(out, "Authentication successful!")
	return token, nil
}

// openBrowser opens a URL in the default browser
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		// Try various Linux browser openers
		if _, err := exec.LookPath("xdg-open"); err == nil {
			cmd = exec.Command("xdg-open", url)
		} else if _, err := exec.LookPath("wslview"); err == nil {
			// WSL
			cmd = exec.Command("wslview", url)
		}
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	}

	if cmd != nil {
		cmd.Start()
	}
}
