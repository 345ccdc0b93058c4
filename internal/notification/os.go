package notification

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// osChannel sends notifications via OS-native notification systems
type osChannel struct {
	executor CommandExecutor
	platform string
}

func newOSChannel() *osChannel {
	return &osChannel{executor: &realCommandExecutor{}, platform: runtime.GOOS}
}

func (c *osChannel) send(n Notification) error {
	switch c.platform {
	case "linux", "freebsd", "openbsd":
		return c.executor.Execute("notify-send", "--app-name=remindat", n.Title, n.Message)
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			escapeAppleScript(n.Message), escapeAppleScript(n.Title))
		return c.executor.Execute("osascript", "-e", script)
	case "windows":
		return c.executor.Execute("powershell", "-Command", windowsScript(n))
	default:
		return fmt.Errorf("unsupported platform: %s", c.platform)
	}
}

// escapeAppleScript escapes backslashes and double quotes for an
// AppleScript string literal.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// escapePowerShell escapes backticks, double quotes and dollar signs for a
// PowerShell double-quoted string.
func escapePowerShell(s string) string {
	s = strings.ReplaceAll(s, "`", "``")
	s = strings.ReplaceAll(s, `"`, "`\"")
	s = strings.ReplaceAll(s, "$", "`$")
	return s
}

func windowsScript(n Notification) string {
	return fmt.Sprintf(`
Add-Type -AssemblyName System.Windows.Forms
$notification = New-Object System.Windows.Forms.NotifyIcon
$notification.Icon = [System.Drawing.SystemIcons]::Information
$notification.BalloonTipTitle = "%s"
$notification.BalloonTipText = "%s"
$notification.Visible = $true
$notification.ShowBalloonTip(5000)
`, escapePowerShell(n.Title), escapePowerShell(n.Message))
}

type realCommandExecutor struct{}

func (e *realCommandExecutor) Execute(cmd string, args ...string) error {
	return exec.Command(cmd, args...).Run()
}
