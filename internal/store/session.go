package store

import (
	"context"

	"remindat/internal/oauth"
	"remindat/internal/utils"
)

// OAuthStatus reports (credentials saved, logged in)
func (s *Store) OAuthStatus() (bool, bool) {
	if s.cfg.Auth == nil {
		return false, false
	}
	hasCreds, _ := s.cfg.Auth.Status()
	return hasCreds, s.cfg.Auth.IsAuthenticated()
}

// OAuthCredentials returns the saved client credentials, if any
func (s *Store) OAuthCredentials() (*oauth.Credentials, bool) {
	if s.cfg.Auth == nil {
		return nil, false
	}
	creds, err := s.cfg.Auth.LoadCredentials()
	if err != nil {
		return nil, false
	}
	return creds, true
}

// SaveOAuthCredentials stores the Google client credentials
func (s *Store) SaveOAuthCredentials(creds oauth.Credentials) error {
	if s.cfg.Auth == nil {
		return utils.OAuthError("Drive sync is not configured", nil)
	}
	return s.cfg.Auth.SaveCredentials(creds)
}

// StartOAuthFlow opens the consent page and waits for the callback in the
// background. Once the code is exchanged the store reconnects to Drive; the
// returned flow's Done channel reports the combined result.
func (s *Store) StartOAuthFlow(ctx context.Context) (*oauth.Flow, error) {
	if !s.cloudConfigured() {
		return nil, utils.OAuthError("Drive sync is not configured", nil)
	}
	flow, err := s.cfg.Auth.StartFlow(ctx)
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		if err := <-flow.Done; err != nil {
			done <- err
			return
		}
		done <- s.ReloadOAuthState(ctx)
	}()
	return &oauth.Flow{URL: flow.URL, Done: done}, nil
}

// ReloadOAuthState re-reads the token files and re-runs Drive initialization
func (s *Store) ReloadOAuthState(ctx context.Context) error {
	if !s.cloudConfigured() {
		return nil
	}
	s.cloudMu.Lock()
	s.cfg.Auth.Reload()
	s.cloudMu.Unlock()
	return s.initCloud(ctx)
}

// Disconnect forgets the Drive session. Saved credentials are kept.
func (s *Store) Disconnect() error {
	if s.cfg.Auth == nil {
		return nil
	}
	s.cloudMu.Lock()
	defer s.cloudMu.Unlock()
	if err := s.cfg.Auth.Disconnect(); err != nil {
		return err
	}
	utils.Infof("Disconnected from Google Drive")
	return nil
}
