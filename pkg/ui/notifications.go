package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"coinclicker/pkg/config"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, appleQuote(message), appleQuote(title))
	return exec.Command("osascript", "-e", script).Run()
}

func appleQuote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	escape := strings.NewReplacer("<", "&lt;", ">", "&gt;", "&", "&amp;")
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		$xml = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$xml.LoadXml('<toast><visual><binding template="ToastText02"><text id="1">%s</text><text id="2">%s</text></binding></visual></toast>')
		$toast = [Windows.UI.Notifications.ToastNotification]::new($xml)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("coinclicker").Show($toast)
	`, escape.Replace(title), escape.Replace(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// Notifier sends desktop notifications when enabled
type Notifier struct {
	sender        NotificationSender
	enabled       bool
	onCooldownEnd bool
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}

	return NewNotifierWithSender(sender, cfg)
}

// NewNotifierWithSender creates a Notifier using sender
func NewNotifierWithSender(sender NotificationSender, cfg config.NotificationConfig) *Notifier {
	return &Notifier{
		sender:        sender,
		enabled:       cfg.Enabled,
		onCooldownEnd: cfg.OnCooldownEnd,
	}
}

// Send delivers a notification. Delivery failures are returned but are
// never worth interrupting the user for.
func (n *Notifier) Send(title, message string) error {
	if n == nil || !n.enabled || n.sender == nil {
		return nil
	}
	return n.sender.Send(title, message)
}

// CooldownFinished announces that the coin button accepts clicks again
func (n *Notifier) CooldownFinished() error {
	if n == nil || !n.onCooldownEnd {
		return nil
	}
	return n.Send("coinclicker", "Your coins have refilled. Back to clicking!")
}
