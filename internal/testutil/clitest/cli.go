// Package clitest runs the remindat command tree in-process against an
// isolated config and data dir.
package clitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"remindat/backend"
	"remindat/cmd/remindat/cmd"
	"remindat/internal/credentials"
	"remindat/internal/testutil"
)

// CLITest runs remindat commands against an isolated config, data dir and
// runtime dir.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	tmpDir     string
	dataDir    string
	configPath string
	keyring    *credentials.MockKeyring
}

// NewCLITest creates a CLI test helper without Drive endpoints configured.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()
	return newCLITest(t, "")
}

// NewCLITestWithDrive creates a CLI test helper whose OAuth and Drive
// endpoints point at a FakeDrive. The callback port is a free local port.
func NewCLITestWithDrive(t *testing.T) (*CLITest, *testutil.FakeDrive) {
	t.Helper()

	fake := testutil.NewFakeDrive(t, "", "refresh-1")
	extra := fmt.Sprintf(`oauth:
  redirect_port: %d
  auth_url: %s/auth
  token_url: %s
drive:
  api_base_url: %s
  upload_base_url: %s
`, testutil.FreePort(t), fake.URL(), fake.TokenURL(), fake.URL(), fake.URL())
	return newCLITest(t, extra), fake
}

func newCLITest(t *testing.T, extra string) *CLITest {
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "data")
	configPath := filepath.Join(tmpDir, "config.yaml")

	// The daemon socket, PID file and background log follow these
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(tmpDir, "run"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	t.Setenv("TMPDIR", tmpDir)
	t.Setenv(credentials.EnvClientSecret, "")

	content := fmt.Sprintf("# test config\ndata_dir: %s\nlogging:\n  background_enabled: false\n%s", dataDir, extra)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	keyring := credentials.NewMockKeyring()
	return &CLITest{
		t:          t,
		tmpDir:     tmpDir,
		dataDir:    dataDir,
		configPath: configPath,
		keyring:    keyring,
		cfg: &cmd.Config{
			NoPrompt:    true,
			ConfigPath:  configPath,
			Stdin:       strings.NewReader(""),
			Keyring:     keyring,
			OpenBrowser: func(string) error { return nil },
		},
	}
}

// Config returns the command config; tests may change it before Execute.
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// TmpDir returns the temporary directory used for this test.
func (c *CLITest) TmpDir() string {
	return c.tmpDir
}

// DataDir returns data_dir from the test config.
func (c *CLITest) DataDir() string {
	return c.dataDir
}

// ConfigPath returns the path of the test config file.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// Keyring returns the in-memory keyring used by the commands.
func (c *CLITest) Keyring() *credentials.MockKeyring {
	return c.keyring
}

// SetStdin feeds input to prompts and turns prompting on.
func (c *CLITest) SetStdin(input string) {
	c.cfg.Stdin = strings.NewReader(input)
	c.cfg.NoPrompt = false
}

// AppendConfig adds raw YAML to the test config file.
func (c *CLITest) AppendConfig(yamlContent string) {
	c.t.Helper()
	f, err := os.OpenFile(c.configPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		c.t.Fatalf("failed to open config: %v", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(yamlContent); err != nil {
		c.t.Fatalf("failed to append config: %v", err)
	}
}

// WriteSnapshot writes reminders.json into the data dir.
func (c *CLITest) WriteSnapshot(content string) {
	c.t.Helper()
	if err := os.MkdirAll(c.dataDir, 0755); err != nil {
		c.t.Fatalf("failed to create data dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(c.dataDir, backend.SnapshotFileName), []byte(content), 0644); err != nil {
		c.t.Fatalf("failed to write snapshot: %v", err)
	}
}

// ReadSnapshot decodes reminders.json from the data dir.
func (c *CLITest) ReadSnapshot() *backend.ReminderStore {
	c.t.Helper()
	data, err := os.ReadFile(filepath.Join(c.dataDir, backend.SnapshotFileName))
	if err != nil {
		c.t.Fatalf("failed to read snapshot: %v", err)
	}
	var rs backend.ReminderStore
	if err := json.Unmarshal(data, &rs); err != nil {
		c.t.Fatalf("failed to decode snapshot: %v", err)
	}
	return &rs
}

// Execute runs the CLI with the given arguments.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, c.cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// MustExecute runs the CLI and fails the test on a non-zero exit code.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("expected exit code 0, got %d: stdout=%s stderr=%s", exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs the CLI and fails the test if it succeeds.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("expected non-zero exit code, got 0: stdout=%s", stdout)
	}
	return stdout, stderr
}

// AutoConsent returns an OpenBrowser replacement that plays the user
// granting access: it redirects to the callback with code and the state
// from the consent URL.
func AutoConsent(t *testing.T, code string) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		callback := fmt.Sprintf("%s?code=%s&state=%s",
			q.Get("redirect_uri"), url.QueryEscape(code), url.QueryEscape(q.Get("state")))

		// The listener is served only after the opener returns
		go func() {
			resp, err := http.Get(callback)
			if err != nil {
				t.Logf("callback request failed: %v", err)
				return
			}
			_ = resp.Body.Close()
		}()
		return nil
	}
}

// AssertContains checks that output contains the expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains checks that output does not contain the string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output not to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertExitCode checks the exit code.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}

// AssertResultCode checks that the last line of output is the result code.
func AssertResultCode(t *testing.T, output, expectedCode string) {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	if lastLine != expectedCode {
		t.Errorf("expected result code %q, got %q\nFull output:\n%s", expectedCode, lastLine, output)
	}
}
