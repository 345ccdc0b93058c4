package credentials

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLookup_KeyringFirst(t *testing.T) {
	kr := NewMockKeyring()
	m := NewManager(WithKeyring(kr))
	t.Setenv(EnvClientSecret, "from-env")

	if err := m.Store("client-1", "from-keyring"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	secret := m.Lookup("client-1")
	if !secret.Found || secret.Source != SourceKeyring || secret.Value != "from-keyring" {
		t.Errorf("expected keyring secret, got %+v", secret)
	}
}

func TestLookup_EnvironmentFallback(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))
	t.Setenv(EnvClientSecret, "from-env")

	secret := m.Lookup("client-1")
	if !secret.Found || secret.Source != SourceEnvironment || secret.Value != "from-env" {
		t.Errorf("expected environment secret, got %+v", secret)
	}
}

func TestLookup_NotFound(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))
	t.Setenv(EnvClientSecret, "")

	secret := m.Lookup("client-1")
	if secret.Found || secret.Source != SourceNone {
		t.Errorf("expected no secret, got %+v", secret)
	}
}

func TestResolve_Prompts(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))
	t.Setenv(EnvClientSecret, "")

	var out bytes.Buffer
	secret, err := m.Resolve("client-1", strings.NewReader("  typed-secret \n"), &out)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if secret.Source != SourcePrompt || secret.Value != "typed-secret" {
		t.Errorf("expected prompted secret, got %+v", secret)
	}
	if !strings.Contains(out.String(), "Client secret for client-1") {
		t.Errorf("expected prompt label, got %q", out.String())
	}
}

func TestResolve_SkipsPromptWhenFound(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))
	t.Setenv(EnvClientSecret, "from-env")

	var out bytes.Buffer
	secret, err := m.Resolve("client-1", strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if secret.Source != SourceEnvironment {
		t.Errorf("expected environment secret, got %+v", secret)
	}
	if out.Len() != 0 {
		t.Errorf("expected no prompt, got %q", out.String())
	}
}

func TestResolve_EmptyInput(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))
	t.Setenv(EnvClientSecret, "")

	if _, err := m.Resolve("client-1", strings.NewReader("\n"), &bytes.Buffer{}); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := m.Resolve("client-1", strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Error("expected error for no input")
	}
}

func TestDelete_Idempotent(t *testing.T) {
	kr := NewMockKeyring()
	m := NewManager(WithKeyring(kr))

	if err := m.Store("client-1", "s"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := m.Delete("client-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := m.Delete("client-1"); err != nil {
		t.Errorf("second Delete() should be a no-op, got %v", err)
	}
	if _, err := kr.Get(ServiceName, "client-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
