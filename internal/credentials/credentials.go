// Package credentials resolves the Google OAuth client secret from the OS
// keyring, the environment, or an interactive prompt, in that order.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Source indicates where a secret was retrieved from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourcePrompt      Source = "prompt"
	SourceNone        Source = "none"
)

// ServiceName is the keyring service under which client secrets are stored
const ServiceName = "remindat-google"

// EnvClientSecret overrides the keyring when set
const EnvClientSecret = "REMINDAT_GOOGLE_CLIENT_SECRET"

// Secret is a resolved client secret and where it came from
type Secret struct {
	ClientID string
	Value    string
	Source   Source
	Found    bool
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, password string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles credential operations
type Manager struct {
	keyring Keyring
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// NewManager creates a new credential manager backed by the system keyring
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: &systemKeyring{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store saves the client secret for clientID in the keyring
func (m *Manager) Store(clientID, secret string) error {
	return m.keyring.Set(ServiceName, strings.TrimSpace(clientID), secret)
}

// Lookup returns the client secret from the keyring, then the environment
func (m *Manager) Lookup(clientID string) *Secret {
	clientID = strings.TrimSpace(clientID)

	if value, err := m.keyring.Get(ServiceName, clientID); err == nil && value != "" {
		return &Secret{ClientID: clientID, Value: value, Source: SourceKeyring, Found: true}
	}

	if value := os.Getenv(EnvClientSecret); value != "" {
		return &Secret{ClientID: clientID, Value: value, Source: SourceEnvironment, Found: true}
	}

	return &Secret{ClientID: clientID, Source: SourceNone}
}

// Resolve returns the client secret, prompting on in/out when neither the
// keyring nor the environment has it.
func (m *Manager) Resolve(clientID string, in io.Reader, out io.Writer) (*Secret, error) {
	if secret := m.Lookup(clientID); secret.Found {
		return secret, nil
	}

	value, err := PromptSecret(in, out, fmt.Sprintf("Client secret for %s: ", clientID))
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret: %w", err)
	}
	if value == "" {
		return nil, errors.New("client secret must not be empty")
	}
	return &Secret{ClientID: strings.TrimSpace(clientID), Value: value, Source: SourcePrompt, Found: true}, nil
}

// Delete removes the stored secret. Missing entries are not an error.
func (m *Manager) Delete(clientID string) error {
	err := m.keyring.Delete(ServiceName, strings.TrimSpace(clientID))
	if err != nil && (errors.Is(err, ErrNotFound) || strings.Contains(err.Error(), "not found")) {
		return nil
	}
	return err
}

// PromptSecret reads a secret without echo when in is a terminal; otherwise
// it reads one line.
func PromptSecret(in io.Reader, out io.Writer, label string) (string, error) {
	_, _ = fmt.Fprint(out, label)

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		data, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no input received")
}
