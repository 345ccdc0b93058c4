// Package oauth manages the Google OAuth session used by the Drive backend:
// authorization URL, local callback listener, code exchange, token refresh
// and the durable token and credential files.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"remindat/backend"
	"remindat/internal/utils"
)

const (
	// DefaultRedirectPort is where the local callback listener binds
	DefaultRedirectPort = 8085
	// DriveScope grants full Drive access
	DriveScope = "https://www.googleapis.com/auth/drive"
	// DefaultAuthURL is Google's authorization endpoint
	DefaultAuthURL = "https://accounts.google.com/o/oauth2/v2/auth"
	// DefaultTokenURL is Google's token endpoint
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
)

// State is the session state
type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingCallback
	StateCodeReceived
	StateAuthenticated
	StateRefreshing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateCodeReceived:
		return "code_received"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds OAuth manager settings
type Config struct {
	DataDir      string
	RedirectPort int                // Defaults to 8085
	AuthURL      string             // Override for testing
	TokenURL     string             // Override for testing
	HTTPClient   *http.Client       // Used for token calls; defaults to http.DefaultClient
	OpenBrowser  func(string) error // Defaults to OpenBrowser
	BindRetries  int                // Defaults to 5
	BindBackoff  time.Duration      // Defaults to 1s
}

// Session is the live token state for the current process
type Session struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	FolderID     string
	FileID       string
}

// Manager owns the session and drives the authorization state machine
type Manager struct {
	cfg Config

	mu      sync.Mutex
	state   State
	session Session
	lastErr error
}

// Flow is an in-progress authorization
type Flow struct {
	URL  string
	Done <-chan error // receives exactly one value
}

// New creates a manager and loads any persisted session from DataDir
func New(cfg Config) *Manager {
	if cfg.RedirectPort == 0 {
		cfg.RedirectPort = DefaultRedirectPort
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.OpenBrowser == nil {
		cfg.OpenBrowser = OpenBrowser
	}
	if cfg.BindRetries == 0 {
		cfg.BindRetries = 5
	}
	if cfg.BindBackoff == 0 {
		cfg.BindBackoff = time.Second
	}

	m := &Manager{cfg: cfg}
	m.Reload()
	return m
}

// Reload re-reads token.json and oauth_credentials.json into the session.
// It reports whether an access token is available.
func (m *Manager) Reload() bool {
	folderID := backend.DefaultDriveFolderID
	if creds, err := m.LoadCredentials(); err == nil {
		folderID = creds.FolderID
	}

	tf, err := m.readTokenFile()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			utils.Warnf("Ignoring %s: %v", TokenFileName, err)
		}
		m.session = Session{FolderID: folderID}
		m.state = StateUnauthenticated
		return false
	}

	m.session = Session{
		AccessToken:  tf.accessToken(),
		RefreshToken: tf.RefreshToken,
		ClientID:     tf.ClientID,
		ClientSecret: tf.ClientSecret,
		FolderID:     folderID,
	}
	m.state = StateAuthenticated
	return true
}

// State returns the current state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the error that moved the session to Failed, if any
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Session returns a copy of the session
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// IsAuthenticated reports whether cloud calls can be attempted
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.AccessToken != ""
}

// SetFileID records the Drive file located for this session
func (m *Manager) SetFileID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.FileID = id
}

// Status reports (has credentials, is logged in) from the durable files
func (m *Manager) Status() (bool, bool) {
	return fileExists(m.credentialsPath()), fileExists(m.tokenPath())
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// MarkFailed moves the session to Failed
func (m *Manager) MarkFailed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateFailed
	m.lastErr = err
}

func (m *Manager) oauthConfig(creds *Credentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  m.RedirectURI(),
		Scopes:       []string{DriveScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   m.cfg.AuthURL,
			TokenURL:  m.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (m *Manager) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.cfg.HTTPClient)
}

// RedirectURI is the loopback address registered with Google
func (m *Manager) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d", m.cfg.RedirectPort)
}

// AuthURL builds the consent URL requesting offline access
func (m *Manager) AuthURL(state string) (string, error) {
	creds, err := m.LoadCredentials()
	if err != nil {
		return "", err
	}
	return m.authCodeURL(creds, state), nil
}

func (m *Manager) authCodeURL(creds *Credentials, state string) string {
	return m.oauthConfig(creds).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// =============================================================================
// Authorization Flow
// =============================================================================

// StartFlow binds the callback listener, opens the consent page and waits in
// the background for the redirect. Cancel ctx to abandon the wait.
func (m *Manager) StartFlow(ctx context.Context) (*Flow, error) {
	creds, err := m.LoadCredentials()
	if err != nil {
		return nil, err
	}

	nonce := uuid.New().String()
	authURL := m.authCodeURL(creds, nonce)

	ln, err := listen(ctx, m.cfg.RedirectPort, m.cfg.BindRetries, m.cfg.BindBackoff)
	if err != nil {
		m.MarkFailed(err)
		return nil, err
	}
	m.setState(StateAwaitingCallback)

	if err := m.cfg.OpenBrowser(authURL); err != nil {
		utils.Warnf("Could not open a browser (%v); open this URL manually:\n%s", err, authURL)
	}
	utils.Infof("Waiting for OAuth callback on port %d...", m.cfg.RedirectPort)

	done := make(chan error, 1)
	go func() {
		done <- m.completeFlow(ctx, ln, nonce, creds)
	}()

	return &Flow{URL: authURL, Done: done}, nil
}

func (m *Manager) completeFlow(ctx context.Context, ln net.Listener, nonce string, creds *Credentials) error {
	code, err := waitForCode(ctx, ln, nonce)
	_ = ln.Close()
	if err != nil {
		m.MarkFailed(err)
		return err
	}

	m.setState(StateCodeReceived)
	utils.Debugf("Received OAuth code")
	return m.exchange(ctx, code, creds)
}

// Exchange trades an authorization code for tokens and persists them
func (m *Manager) Exchange(ctx context.Context, code string) error {
	creds, err := m.LoadCredentials()
	if err != nil {
		return err
	}
	m.setState(StateCodeReceived)
	return m.exchange(ctx, code, creds)
}

func (m *Manager) exchange(ctx context.Context, code string, creds *Credentials) error {
	tok, err := m.oauthConfig(creds).Exchange(m.httpContext(ctx), code)
	if err != nil {
		err = utils.ErrAuthenticationFailed(err)
		m.MarkFailed(err)
		return err
	}

	tf := tokenFile{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
	}
	if err := m.writeTokenFile(tf); err != nil {
		m.MarkFailed(err)
		return err
	}

	m.mu.Lock()
	m.session = Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		FolderID:     creds.FolderID,
	}
	m.state = StateAuthenticated
	m.lastErr = nil
	m.mu.Unlock()

	utils.Infof("Connected to Google Drive")
	return nil
}

// =============================================================================
// Refresh / Disconnect
// =============================================================================

// Refresh obtains a new access token with the stored refresh token and
// rewrites only the access token in token.json. Failure moves to Failed.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	sess := m.session
	m.state = StateRefreshing
	m.mu.Unlock()

	if sess.RefreshToken == "" {
		err := utils.OAuthError("no refresh token available", nil)
		m.MarkFailed(err)
		return "", err
	}

	creds := &Credentials{ClientID: sess.ClientID, ClientSecret: sess.ClientSecret}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		if stored, err := m.LoadCredentials(); err == nil {
			creds.ClientID, creds.ClientSecret = stored.ClientID, stored.ClientSecret
		}
	}

	src := m.oauthConfig(creds).TokenSource(m.httpContext(ctx), &oauth2.Token{RefreshToken: sess.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		err = utils.OAuthError("token refresh failed", err)
		m.MarkFailed(err)
		return "", err
	}

	if err := m.updateAccessToken(tok.AccessToken); err != nil {
		m.MarkFailed(err)
		return "", err
	}

	m.mu.Lock()
	m.session.AccessToken = tok.AccessToken
	m.state = StateAuthenticated
	m.lastErr = nil
	m.mu.Unlock()

	utils.Debugf("Token refreshed successfully")
	return tok.AccessToken, nil
}

// Disconnect deletes token.json and clears the session. Credentials are kept.
func (m *Manager) Disconnect() error {
	if err := os.Remove(m.tokenPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return utils.StorageError("failed to remove "+TokenFileName, err)
	}

	folderID := backend.DefaultDriveFolderID
	if creds, err := m.LoadCredentials(); err == nil {
		folderID = creds.FolderID
	}

	m.mu.Lock()
	m.session = Session{FolderID: folderID}
	m.state = StateUnauthenticated
	m.lastErr = nil
	m.mu.Unlock()
	return nil
}
