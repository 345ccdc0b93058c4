package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"remindat/backend"
	"remindat/internal/utils"
)

const (
	// TokenFileName holds the access and refresh tokens
	TokenFileName = "token.json"
	// CredentialsFileName holds the OAuth client and Drive folder
	CredentialsFileName = "oauth_credentials.json"
)

// Credentials are the OAuth client settings entered by the user
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	FolderID     string `json:"folder_id"`
}

// tokenFile is the durable token document. "token" is the access token;
// older files may carry "access_token" instead.
type tokenFile struct {
	Token        string `json:"token,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

func (t tokenFile) accessToken() string {
	if t.Token != "" {
		return t.Token
	}
	return t.AccessToken
}

func (m *Manager) tokenPath() string {
	return filepath.Join(m.cfg.DataDir, TokenFileName)
}

func (m *Manager) credentialsPath() string {
	return filepath.Join(m.cfg.DataDir, CredentialsFileName)
}

// LoadCredentials reads oauth_credentials.json; folder_id defaults when absent
func (m *Manager) LoadCredentials() (*Credentials, error) {
	data, err := os.ReadFile(m.credentialsPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, utils.ErrCredentialsNotFound()
	}
	if err != nil {
		return nil, utils.StorageError("failed to read "+CredentialsFileName, err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, utils.OAuthError("invalid "+CredentialsFileName, err)
	}
	if creds.FolderID == "" {
		creds.FolderID = backend.DefaultDriveFolderID
	}
	return &creds, nil
}

// SaveCredentials writes oauth_credentials.json
func (m *Manager) SaveCredentials(creds Credentials) error {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return utils.ValidationError("client id and client secret are required")
	}
	if creds.FolderID == "" {
		creds.FolderID = backend.DefaultDriveFolderID
	}
	if err := writeJSONFile(m.credentialsPath(), creds); err != nil {
		return err
	}

	m.mu.Lock()
	m.session.FolderID = creds.FolderID
	m.mu.Unlock()
	return nil
}

func (m *Manager) readTokenFile() (*tokenFile, error) {
	data, err := os.ReadFile(m.tokenPath())
	if err != nil {
		return nil, err
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", TokenFileName, err)
	}
	if tf.accessToken() == "" {
		return nil, fmt.Errorf("no access token in %s", TokenFileName)
	}
	return &tf, nil
}

func (m *Manager) writeTokenFile(tf tokenFile) error {
	return writeJSONFile(m.tokenPath(), tf)
}

// updateAccessToken rewrites only the "token" key, keeping every other key as-is
func (m *Manager) updateAccessToken(token string) error {
	data, err := os.ReadFile(m.tokenPath())
	if err != nil {
		return utils.StorageError("failed to read "+TokenFileName, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return utils.OAuthError("invalid "+TokenFileName, err)
	}
	encoded, err := json.Marshal(token)
	if err != nil {
		return utils.OAuthError("failed to encode token", err)
	}
	doc["token"] = encoded

	return writeJSONFile(m.tokenPath(), doc)
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return utils.StorageError("failed to encode "+filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return utils.StorageError("failed to create directory", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return utils.StorageError("failed to write "+filepath.Base(path), err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
